package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByCommand   map[string]int
	Connections       map[string]*ConnectionStats
	Discarded         int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single session.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Model     string
	Serial    string
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByCommand:   make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		stats.add(event)
	}

	stats.print(w)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Command != nil {
		s.EventsByCommand[event.Command.CommandName]++
		if event.Command.Matched != nil && !*event.Command.Matched {
			s.Discarded++
		}
	}
	if event.Error != nil {
		s.Errors++
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	conn.LastSeen = event.Timestamp
	if event.Model != "" {
		conn.Model = event.Model
	}
	if event.Serial != "" {
		conn.Serial = event.Serial
	}
}

func (s *Stats) print(w io.Writer) {
	fmt.Fprintf(w, "Total events: %d\n", s.TotalEvents)
	if !s.TimeRange.Start.IsZero() {
		fmt.Fprintf(w, "Time range:   %s - %s (%s)\n",
			s.TimeRange.Start.UTC().Format(time.RFC3339),
			s.TimeRange.End.UTC().Format(time.RFC3339),
			s.TimeRange.End.Sub(s.TimeRange.Start).Round(time.Millisecond))
	}

	fmt.Fprintln(w, "\nBy layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if n := s.EventsByLayer[layer]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", layer, n)
		}
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, cat := range []log.Category{log.CategoryCommand, log.CategoryKeepAlive, log.CategoryState, log.CategoryError} {
		if n := s.EventsByCategory[cat]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", cat, n)
		}
	}

	if len(s.EventsByCommand) > 0 {
		fmt.Fprintln(w, "\nBy command:")
		names := make([]string, 0, len(s.EventsByCommand))
		for name := range s.EventsByCommand {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-24s %d\n", name, s.EventsByCommand[name])
		}
	}

	if s.Discarded > 0 {
		fmt.Fprintf(w, "\nDiscarded responses: %d\n", s.Discarded)
	}
	if s.Errors > 0 {
		fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	}

	fmt.Fprintf(w, "\nSessions: %d\n", len(s.Connections))
	ids := make([]string, 0, len(s.Connections))
	for id := range s.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		conn := s.Connections[id]
		fmt.Fprintf(w, "  %s  %d events", shortenConnID(id), conn.Events)
		if conn.Model != "" {
			fmt.Fprintf(w, "  %s", conn.Model)
		}
		if conn.Serial != "" {
			fmt.Fprintf(w, "  %s", conn.Serial)
		}
		fmt.Fprintln(w)
	}
}
