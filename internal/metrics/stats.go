package metrics

import (
	"math"
	"sort"
	"time"

	"qcping/internal/model"
)

// Summary is a per-stream statistics snapshot.
type Summary struct {
	Stream         model.StreamID
	Probes         int
	Reachable      int
	Availability   float64
	From           time.Time
	To             time.Time
	AvgPingMs      float64
	P95PingMs      float64
	MinPingMs      float64
	MaxPingMs      float64
	LastPortStatus int
}

// Summarize computes summaries for records created at or after since. Ping
// statistics only include reachable probes. Results are ordered by stream ID.
func Summarize(items []model.Quality, since time.Time) []Summary {
	type acc struct {
		summary  Summary
		pings    []float64
		lastPort time.Time
	}
	byStream := make(map[model.StreamID]*acc)

	for _, q := range items {
		if q.Created.Before(since) {
			continue
		}
		a, ok := byStream[q.WaveformID]
		if !ok {
			a = &acc{summary: Summary{Stream: q.WaveformID, From: q.Created, To: q.Created}}
			byStream[q.WaveformID] = a
		}
		s := &a.summary
		if q.Created.Before(s.From) {
			s.From = q.Created
		}
		if q.Created.After(s.To) {
			s.To = q.Created
		}

		switch q.Parameter {
		case model.ParameterPing:
			s.Probes++
			if q.Value >= 0 {
				s.Reachable++
				a.pings = append(a.pings, q.Value)
			}
		case model.ParameterPortStatus:
			if !q.Created.Before(a.lastPort) {
				a.lastPort = q.Created
				s.LastPortStatus = int(q.Value)
			}
		}
	}

	out := make([]Summary, 0, len(byStream))
	for _, a := range byStream {
		s := a.summary
		if s.Probes > 0 {
			s.Availability = float64(s.Reachable) / float64(s.Probes)
		}
		if len(a.pings) > 0 {
			sort.Float64s(a.pings)
			var sum float64
			for _, v := range a.pings {
				sum += v
			}
			s.AvgPingMs = sum / float64(len(a.pings))
			s.P95PingMs = percentile(a.pings, 0.95)
			s.MinPingMs = a.pings[0]
			s.MaxPingMs = a.pings[len(a.pings)-1]
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Stream.String() < out[j].Stream.String()
	})
	return out
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
