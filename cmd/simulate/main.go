package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-scheduling/internal/config"
	"github.com/hackgods/dental-clinic-scheduling/internal/db"
	"github.com/hackgods/dental-clinic-scheduling/internal/logging"
)

// The simulator hammers a narrow window of slots so that concurrent
// bookings collide, then checks that no two blocking appointments of the
// same professional or room overlap.

type SimConfig struct {
	APIBaseURL   string
	Token        string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	SlotsPerDay  int
	Days         int
	PostgresDSN  string
	Location     *time.Location
}

type DataPool struct {
	Patients      []int64
	Professionals []int64
	Rooms         []int64
	Days          []time.Time // clinic-local midnights of upcoming weekdays
	mu            sync.RWMutex
	appointments  []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	ConflictAtCommit
	Busy
	Failed
)

type OperationMetrics struct {
	Total     int64
	Counts    [Failed + 1]int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, outcome Outcome) {
	atomic.AddInt64(&om.Total, 1)
	atomic.AddInt64(&om.Counts[outcome], 1)

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles(ps ...int) []time.Duration {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	out := make([]time.Duration, len(ps))
	if len(latencies) == 0 {
		return out
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	for i, p := range ps {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		out[i] = latencies[idx]
	}
	return out
}

type Metrics struct {
	Booking  OperationMetrics
	Status   OperationMetrics
	ReadByID OperationMetrics
	Agenda   OperationMetrics
	FollowUp OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	faker   *gofakeit.Faker
	fakerMu sync.Mutex
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	logger := logging.New(getEnv("APP_ENV", "prod"), getEnv("LOG_LEVEL", "info"), "simulate")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("status", cfg.StatusRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("professionals", len(dataPool.Professionals)).
		Int("rooms", len(dataPool.Rooms)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		faker:  gofakeit.New(0),
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("overlap check")
	}
	fmt.Printf("Overlapping blocking appointments: %d\n", overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Token:        os.Getenv("SIM_TOKEN"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		SlotsPerDay:  getInt("SIM_SLOTS_PER_DAY", 8),
		Days:         getInt("SIM_DAYS", 2),
		PostgresDSN:  baseCfg.PostgresDSN,
		Location:     baseCfg.ClinicLocation,
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.Workers <= 0:
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	case cfg.SlotsPerDay <= 0 || cfg.Days <= 0:
		return cfg, fmt.Errorf("SIM_SLOTS_PER_DAY and SIM_DAYS must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	if dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients ORDER BY id LIMIT 500`); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dataPool.Professionals, err = loadIDs(ctx, pool, `SELECT id FROM professionals WHERE active ORDER BY id LIMIT 5`); err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}
	if dataPool.Rooms, err = loadIDs(ctx, pool, `SELECT id FROM rooms WHERE active ORDER BY id LIMIT 3`); err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	if len(dataPool.Patients) == 0 || len(dataPool.Professionals) == 0 || len(dataPool.Rooms) == 0 {
		return nil, fmt.Errorf("database has no patients, professionals or rooms; run clinicctl seed first")
	}

	day := time.Now().In(cfg.Location).AddDate(0, 0, 1)
	for len(dataPool.Days) < cfg.Days {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dataPool.Days = append(dataPool.Days, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, cfg.Location))
		}
		day = day.AddDate(0, 0, 1)
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]int64, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// countOverlaps is the end-to-end check that the commit-time constraint held.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.id < b.id
		 AND (a.professional_id = b.professional_id OR a.room_id = b.room_id)
		 AND a.start_at < b.end_at
		 AND b.start_at < a.end_at
		WHERE a.status NOT IN ('CANCELLED', 'NO_SHOW')
		  AND b.status NOT IN ('CANCELLED', 'NO_SHOW')
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StatusRatio:
				s.doStatus(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doAgenda(ctx, rng)
				case 2:
					s.doFollowUp(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) fakeReason() string {
	s.fakerMu.Lock()
	defer s.fakerMu.Unlock()
	return s.faker.RandomString([]string{"Limpieza", "Control", "Dolor molar", "Blanqueamiento", "Evaluación", ""})
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]
	start := day.Add(9*time.Hour + time.Duration(rng.Intn(s.config.SlotsPerDay))*30*time.Minute)

	body := map[string]any{
		"patientId":       s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"professionalId":  s.pool.Professionals[rng.Intn(len(s.pool.Professionals))],
		"roomId":          s.pool.Rooms[rng.Intn(len(s.pool.Rooms))],
		"start":           start.Format(time.RFC3339),
		"durationMinutes": []int{30, 30, 45, 60}[rng.Intn(4)],
		"reason":          s.fakeReason(),
	}

	began := time.Now()
	status, respBody, err := s.call(ctx, http.MethodPost, "/appointments", body)
	latency := time.Since(began)

	outcome := Failed
	switch {
	case err != nil:
	case status == http.StatusCreated:
		outcome = Accepted
		var created struct {
			Appointment struct {
				ID int64 `json:"id"`
			} `json:"appointment"`
		}
		if json.Unmarshal(respBody, &created) == nil && created.Appointment.ID > 0 {
			s.pool.AddAppointment(created.Appointment.ID)
		}
	case status == http.StatusUnprocessableEntity:
		outcome = Rejected
	case status == http.StatusConflict && bytes.Contains(respBody, []byte("CONFLICT_AT_COMMIT")):
		outcome = ConflictAtCommit
	case status == http.StatusConflict:
		outcome = Busy
	}

	s.metrics.Booking.Record(latency, outcome)
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	to := []string{"CONFIRMED", "CONFIRMED", "CHECKED_IN", "CANCELLED"}[rng.Intn(4)]

	began := time.Now()
	status, _, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/status", id), map[string]string{"status": to})
	latency := time.Since(began)

	outcome := Failed
	switch {
	case err != nil:
	case status == http.StatusOK:
		outcome = Accepted
	case status == http.StatusConflict:
		outcome = Rejected
	}
	s.metrics.Status.Record(latency, outcome)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.doRead(ctx, &s.metrics.ReadByID, fmt.Sprintf("/appointments/%d", id))
}

func (s *Simulator) doAgenda(ctx context.Context, rng *rand.Rand) {
	prof := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]
	s.doRead(ctx, &s.metrics.Agenda, fmt.Sprintf("/professionals/%d/appointments?date=%s", prof, day.Format("2006-01-02")))
}

func (s *Simulator) doFollowUp(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.doRead(ctx, &s.metrics.FollowUp, fmt.Sprintf("/patients/%d/follow-up", patient))
}

func (s *Simulator) doRead(ctx context.Context, om *OperationMetrics, path string) {
	began := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, path, nil)
	latency := time.Since(began)

	outcome := Failed
	if err == nil && status == http.StatusOK {
		outcome = Accepted
	}
	om.Record(latency, outcome)
}

func (s *Simulator) call(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.Status)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Professional agenda", &s.metrics.Agenda)
	printOperationReport("Follow-up", &s.metrics.FollowUp)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	labels := map[Outcome]string{
		Accepted:         "Accepted",
		Rejected:         "Rejected",
		ConflictAtCommit: "Conflict at commit",
		Busy:             "Resource busy",
		Failed:           "Errors",
	}

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	for o := Accepted; o <= Failed; o++ {
		n := atomic.LoadInt64(&om.Counts[o])
		if n == 0 {
			continue
		}
		fmt.Printf("  %s: %d (%.1f%%)\n", labels[o], n, float64(n)/float64(total)*100)
	}

	p := om.Percentiles(50, 95, 99)
	fmt.Printf("  Latency: p50=%s p95=%s p99=%s\n",
		p[0].Round(time.Millisecond), p[1].Round(time.Millisecond), p[2].Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
