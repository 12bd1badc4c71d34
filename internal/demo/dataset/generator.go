package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	services = []string{"frontend", "checkout", "payments", "inventory"}
	regions  = []string{"region-a", "region-b"}
)

// Callers of each service, used to shape traces and to spread the
// incident upstream.
var callers = map[string]string{
	"checkout":  "frontend",
	"payments":  "checkout",
	"inventory": "checkout",
}

var baseLatency = map[string]float64{
	"frontend":  80,
	"checkout":  120,
	"payments":  95,
	"inventory": 40,
}

type MetricRow struct {
	Timestamp    time.Time `parquet:"timestamp"`
	Region       string    `parquet:"region"`
	Service      string    `parquet:"service"`
	LatencyP99MS float64   `parquet:"latency_p99_ms"`
	ErrorRate    float64   `parquet:"error_rate"`
	RequestCount int64     `parquet:"request_count"`
	CPUPercent   float64   `parquet:"cpu_percent"`
}

type LogRow struct {
	Timestamp time.Time `parquet:"timestamp"`
	Region    string    `parquet:"region"`
	Service   string    `parquet:"service"`
	Level     string    `parquet:"level"`
	Message   string    `parquet:"message"`
	TraceID   string    `parquet:"trace_id"`
}

type SpanRow struct {
	TraceID      string    `parquet:"trace_id"`
	SpanID       string    `parquet:"span_id"`
	ParentSpanID string    `parquet:"parent_span_id"`
	Region       string    `parquet:"region"`
	Service      string    `parquet:"service"`
	Operation    string    `parquet:"operation"`
	StartTime    time.Time `parquet:"start_time"`
	DurationMS   float64   `parquet:"duration_ms"`
	Status       string    `parquet:"status"`
}

// Generator produces a reproducible incident scenario. Two generators built
// from the same Config emit identical rows.
type Generator struct {
	cfg      Config
	rnd      *rand.Rand
	sequence int64
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, rnd: rand.New(rand.NewSource(cfg.Seed))}
}

func (g *Generator) timeAt(point int) time.Time {
	return g.cfg.Start.Add(time.Duration(point) * g.cfg.Interval)
}

func (g *Generator) inIncident(point int, region, service string) bool {
	if region != g.cfg.IncidentRegion {
		return false
	}
	if point < g.cfg.IncidentOffset || point >= g.cfg.IncidentOffset+g.cfg.IncidentDuration {
		return false
	}
	return service == g.cfg.IncidentService || callers[g.cfg.IncidentService] == service
}

// Metrics returns one row per service per point for region.
func (g *Generator) Metrics(region string) []MetricRow {
	rows := make([]MetricRow, 0, g.cfg.Points*len(services))
	for point := 0; point < g.cfg.Points; point++ {
		for _, service := range services {
			latency := baseLatency[service] * (0.9 + g.rnd.Float64()*0.2)
			errorRate := g.rnd.Float64() * 0.005
			requests := int64(800 + g.rnd.Intn(400))
			cpu := 25 + g.rnd.Float64()*15

			if g.inIncident(point, region, service) {
				if service == g.cfg.IncidentService {
					latency *= 12 + g.rnd.Float64()*4
					errorRate = 0.25 + g.rnd.Float64()*0.1
					cpu = 85 + g.rnd.Float64()*10
				} else {
					latency *= 4 + g.rnd.Float64()
					errorRate = 0.08 + g.rnd.Float64()*0.04
				}
				requests = requests * 3 / 5
			}

			rows = append(rows, MetricRow{
				Timestamp:    g.timeAt(point),
				Region:       region,
				Service:      service,
				LatencyP99MS: round2(latency),
				ErrorRate:    round4(errorRate),
				RequestCount: requests,
				CPUPercent:   round2(cpu),
			})
		}
	}
	return rows
}

// Logs returns routine info lines for every service in every region plus
// error bursts during the incident window.
func (g *Generator) Logs() []LogRow {
	rows := make([]LogRow, 0, g.cfg.Points*len(services)*len(regions))
	for point := 0; point < g.cfg.Points; point++ {
		for _, region := range regions {
			for _, service := range services {
				at := g.timeAt(point).Add(time.Duration(g.rnd.Intn(59)) * time.Second)
				if !g.inIncident(point, region, service) {
					rows = append(rows, LogRow{
						Timestamp: at,
						Region:    region,
						Service:   service,
						Level:     "INFO",
						Message:   pickOne(g.rnd, routineMessages),
						TraceID:   g.nextID("trace"),
					})
					continue
				}
				level, message := "ERROR", fmt.Sprintf("upstream %s timed out after 5000ms", g.cfg.IncidentService)
				if service == g.cfg.IncidentService {
					message = pickOne(g.rnd, incidentMessages)
				}
				for burst := 0; burst < 3; burst++ {
					rows = append(rows, LogRow{
						Timestamp: at.Add(time.Duration(burst) * time.Second),
						Region:    region,
						Service:   service,
						Level:     level,
						Message:   message,
						TraceID:   g.nextID("trace"),
					})
				}
			}
		}
	}
	return rows
}

// Spans returns one frontend-rooted trace per region per point, following
// the caller chain down to the incident service.
func (g *Generator) Spans() []SpanRow {
	chain := []string{"frontend", "checkout", "payments"}
	rows := make([]SpanRow, 0, g.cfg.Points*len(regions)*len(chain))
	for point := 0; point < g.cfg.Points; point++ {
		for _, region := range regions {
			traceID := g.nextID("trace")
			start := g.timeAt(point).Add(time.Duration(g.rnd.Intn(59)) * time.Second)
			parent := ""
			failed := false
			spans := make([]SpanRow, len(chain))
			for i, service := range chain {
				spanID := g.nextID("span")
				duration := baseLatency[service] * (0.5 + g.rnd.Float64()*0.5)
				status := "OK"
				if g.inIncident(point, region, service) {
					duration = 5000 + g.rnd.Float64()*200
					status = "ERROR"
					failed = true
				}
				spans[i] = SpanRow{
					TraceID:      traceID,
					SpanID:       spanID,
					ParentSpanID: parent,
					Region:       region,
					Service:      service,
					Operation:    operations[service],
					StartTime:    start.Add(time.Duration(i) * 2 * time.Millisecond),
					DurationMS:   round2(duration),
					Status:       status,
				}
				parent = spanID
			}
			if failed {
				spans[0].Status = "ERROR"
			}
			rows = append(rows, spans...)
		}
	}
	return rows
}

func (g *Generator) nextID(kind string) string {
	g.sequence++
	return fmt.Sprintf("%s-%08x%06d", kind, g.rnd.Uint32(), g.sequence)
}

var operations = map[string]string{
	"frontend":  "GET /checkout",
	"checkout":  "POST /orders",
	"payments":  "POST /charges",
	"inventory": "GET /stock",
}

var routineMessages = []string{
	"request completed",
	"cache refreshed",
	"health check ok",
	"background job finished",
}

var incidentMessages = []string{
	"connection pool exhausted: 50/50 connections in use",
	"timeout acquiring database connection after 5000ms",
	"transaction rolled back: connection reset by peer",
}

func isService(name string) bool {
	for _, service := range services {
		if service == name {
			return true
		}
	}
	return false
}

func isRegion(name string) bool {
	for _, region := range regions {
		if region == name {
			return true
		}
	}
	return false
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
