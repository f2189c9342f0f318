// Package ledger keeps, per machine, the ordered history of run sessions and
// an explicit Idle/Running state. A machine has at most one open session.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
	"production-output-backend/internal/parse"
)

// Store is the durable side of the ledger.
type Store interface {
	RecordRunStart(ctx context.Context, closed *model.RunSession, opened *model.RunSession) error
	ListRuns(ctx context.Context) ([]model.RunSession, error)
	ImportRuns(ctx context.Context, runs []model.RunSession) error
}

// State is the run state of a machine.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
)

// running describes the open session of a Running machine.
type running struct {
	since    time.Time
	material string
	size     string
	runID    int64
}

type machine struct {
	mu      sync.Mutex
	current *running // nil while Idle
	history []model.RunSession
}

// StartRunRequest describes a size change on a machine. The start instant is
// StartAt when set, otherwise Date ("2006-01-02") and Time ("15:04" or
// "15:04:05") in the ledger's time zone.
type StartRunRequest struct {
	MachineID   string     `json:"machineId"`
	Material    string     `json:"material"`
	Size        string     `json:"size"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	Date        string     `json:"date,omitempty"`
	Time        string     `json:"time,omitempty"`
	Remarks     string     `json:"remarks"`
	SubmittedBy string     `json:"submittedBy"`
}

// Status is a point-in-time view of one machine.
type Status struct {
	MachineID    string     `json:"machineId"`
	State        State      `json:"state"`
	Material     string     `json:"material,omitempty"`
	Size         string     `json:"size,omitempty"`
	Since        *time.Time `json:"since,omitempty"`
	ElapsedHours *float64   `json:"elapsedHours,omitempty"`
	RunID        int64      `json:"runId,omitempty"`
}

// Ledger is the in-memory run state, kept in step with its Store.
type Ledger struct {
	store  Store
	loc    *time.Location
	logger *zap.Logger

	mu       sync.Mutex
	machines map[string]*machine
}

// New creates an empty ledger. Call Load to hydrate it from the store.
func New(store Store, loc *time.Location, logger *zap.Logger) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		store:    store,
		loc:      loc,
		logger:   logger,
		machines: make(map[string]*machine),
	}
}

// Location returns the time zone used to interpret date and clock strings.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

func (l *Ledger) machine(id string) *machine {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.machines[id]
	if !ok {
		m = &machine{}
		l.machines[id] = m
	}
	return m
}

func (l *Ledger) lookup(id string) (*machine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.machines[id]
	return m, ok
}

func (l *Ledger) machineIDs() []string {
	l.mu.Lock()
	ids := make([]string, 0, len(l.machines))
	for id := range l.machines {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// StartRun records a size change: any open session on the machine is closed at
// the new start instant and a new open session is inserted. Both writes reach
// the store in one transaction before memory changes.
func (l *Ledger) StartRun(ctx context.Context, req StartRunRequest) (model.RunSession, error) {
	machineID := strings.TrimSpace(req.MachineID)
	size := parse.NormalizeSize(req.Size)
	if machineID == "" {
		return model.RunSession{}, fmt.Errorf("%w: machine is required", errs.ErrInvalidValue)
	}
	if size == "" {
		return model.RunSession{}, fmt.Errorf("%w: size is required", errs.ErrInvalidValue)
	}

	var start time.Time
	if req.StartAt != nil {
		start = *req.StartAt
	} else {
		var err error
		if start, err = CombineDateTime(req.Date, req.Time, l.loc); err != nil {
			return model.RunSession{}, err
		}
	}
	start = start.UTC()

	m := l.machine(machineID)
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		closed   *model.RunSession
		closedAt = -1
	)
	if m.current != nil {
		for i := range m.history {
			if m.history[i].ID == m.current.runID {
				closedAt = i
				break
			}
		}
		if closedAt < 0 {
			return model.RunSession{}, fmt.Errorf("open run %d for machine %s missing from history", m.current.runID, machineID)
		}
		c := m.history[closedAt]
		end := start
		duration := ElapsedHours(c.StartAt, end)
		c.EndAt = &end
		c.DurationHours = &duration
		closed = &c
		if duration < 0 {
			l.logger.Warn("closing run with negative duration",
				zap.String("machine", machineID),
				zap.Int64("run_id", c.ID),
				zap.Time("run_start", c.StartAt),
				zap.Time("new_start", start))
		}
	}

	opened := &model.RunSession{
		MachineID:   machineID,
		Material:    strings.TrimSpace(req.Material),
		Size:        size,
		StartAt:     start,
		Remarks:     req.Remarks,
		SubmittedBy: strings.TrimSpace(req.SubmittedBy),
	}

	if err := l.store.RecordRunStart(ctx, closed, opened); err != nil {
		return model.RunSession{}, fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	if closed != nil {
		m.history[closedAt] = *closed
	}
	m.history = append(m.history, *opened)
	m.current = &running{
		since:    opened.StartAt,
		material: opened.Material,
		size:     opened.Size,
		runID:    opened.ID,
	}

	l.logger.Info("run started",
		zap.String("machine", machineID),
		zap.String("size", size),
		zap.Int64("run_id", opened.ID),
		zap.Bool("closed_previous", closed != nil))
	return *opened, nil
}

// CurrentStatus reports the machine's state as of now. A Running machine
// carries the live elapsed hours; an Idle one carries its last closed session,
// if any.
func (l *Ledger) CurrentStatus(machineID string, now time.Time) Status {
	machineID = strings.TrimSpace(machineID)
	status := Status{MachineID: machineID, State: Idle}

	m, ok := l.lookup(machineID)
	if !ok {
		return status
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r := m.current; r != nil {
		since := r.since
		elapsed := ElapsedHours(r.since, now)
		status.State = Running
		status.Material = r.material
		status.Size = r.size
		status.Since = &since
		status.ElapsedHours = &elapsed
		status.RunID = r.runID
		return status
	}

	if last, ok := lastByStart(m.history); ok {
		since := last.StartAt
		status.Material = last.Material
		status.Size = last.Size
		status.Since = &since
		status.ElapsedHours = last.DurationHours
		status.RunID = last.ID
	}
	return status
}

// Statuses reports every machine with at least one session, ordered by machine id.
func (l *Ledger) Statuses(now time.Time) []Status {
	ids := l.machineIDs()
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		s := l.CurrentStatus(id, now)
		if s.Since == nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

// History returns a copy of the machine's sessions ordered by start.
func (l *Ledger) History(machineID string) []model.RunSession {
	m, ok := l.lookup(strings.TrimSpace(machineID))
	if !ok {
		return []model.RunSession{}
	}
	m.mu.Lock()
	out := append([]model.RunSession(nil), m.history...)
	m.mu.Unlock()
	sortSessions(out)
	return out
}

// HistoryAll returns a copy of every session ordered by start.
func (l *Ledger) HistoryAll() []model.RunSession {
	out := []model.RunSession{}
	for _, id := range l.machineIDs() {
		m, _ := l.lookup(id)
		m.mu.Lock()
		out = append(out, m.history...)
		m.mu.Unlock()
	}
	sortSessions(out)
	return out
}

// Load replaces the in-memory state with the store's run history.
func (l *Ledger) Load(ctx context.Context) error {
	runs, err := l.store.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	machines := make(map[string]*machine)
	for _, r := range runs {
		m, ok := machines[r.MachineID]
		if !ok {
			m = &machine{}
			machines[r.MachineID] = m
		}
		m.history = append(m.history, r)
		if !r.Open() {
			continue
		}
		if m.current != nil {
			return fmt.Errorf("machine %s has more than one open run (%d and %d)", r.MachineID, m.current.runID, r.ID)
		}
		m.current = &running{since: r.StartAt, material: r.Material, size: r.Size, runID: r.ID}
	}

	l.mu.Lock()
	l.machines = machines
	l.mu.Unlock()

	l.logger.Info("ledger loaded", zap.Int("machines", len(machines)), zap.Int("runs", len(runs)))
	return nil
}

// Import appends closed sessions, such as rows read back from an export.
// Durations are recomputed from start and end; ids are assigned by the store.
// A row may not overlap another session of its machine, imported or existing,
// and must end by the time the machine's open session started.
func (l *Ledger) Import(ctx context.Context, sessions []model.RunSession) ([]model.RunSession, error) {
	rows := make([]model.RunSession, 0, len(sessions))
	byMachine := make(map[string][]int)
	for i, s := range sessions {
		s.ID = 0
		s.MachineID = strings.TrimSpace(s.MachineID)
		s.Size = parse.NormalizeSize(s.Size)
		if s.MachineID == "" || s.Size == "" {
			return nil, fmt.Errorf("%w: row %d: machine and size are required", errs.ErrInvalidValue, i+1)
		}
		if s.StartAt.IsZero() {
			return nil, fmt.Errorf("%w: row %d: start is required", errs.ErrInvalidTime, i+1)
		}
		if s.Open() {
			return nil, fmt.Errorf("%w: row %d: only closed runs can be imported", errs.ErrInvalidValue, i+1)
		}
		start, end := s.StartAt.UTC(), s.EndAt.UTC()
		duration := ElapsedHours(start, end)
		s.StartAt, s.EndAt, s.DurationHours = start, &end, &duration
		byMachine[s.MachineID] = append(byMachine[s.MachineID], len(rows))
		rows = append(rows, s)
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]string, 0, len(byMachine))
	for id := range byMachine {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Machines are locked in id order so concurrent imports cannot deadlock.
	locked := make([]*machine, 0, len(ids))
	defer func() {
		for _, m := range locked {
			m.mu.Unlock()
		}
	}()
	for _, id := range ids {
		m := l.machine(id)
		m.mu.Lock()
		locked = append(locked, m)

		accepted := make([]model.RunSession, 0, len(m.history)+len(byMachine[id]))
		accepted = append(accepted, m.history...)
		for _, i := range byMachine[id] {
			r := rows[i]
			if m.current != nil && r.EndAt.After(m.current.since) {
				return nil, fmt.Errorf("%w: row %d: machine %s has a run open since %s",
					errs.ErrInvalidValue, i+1, id, m.current.since.Format(time.RFC3339))
			}
			for _, other := range accepted {
				if overlaps(r, other) {
					return nil, fmt.Errorf("%w: row %d: overlaps run starting %s on machine %s",
						errs.ErrInvalidValue, i+1, other.StartAt.Format(time.RFC3339), id)
				}
			}
			accepted = append(accepted, r)
		}
	}

	if err := l.store.ImportRuns(ctx, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageFailure, err)
	}

	for i, id := range ids {
		m := locked[i]
		for _, idx := range byMachine[id] {
			m.history = append(m.history, rows[idx])
		}
		sortSessions(m.history)
	}

	l.logger.Info("runs imported", zap.Int("count", len(rows)), zap.Int("machines", len(ids)))
	return rows, nil
}

// span returns a session's interval with its ends ordered. Open sessions run
// to the end of time.
func span(r model.RunSession) (time.Time, time.Time, bool) {
	if r.EndAt == nil {
		return r.StartAt, time.Time{}, true
	}
	if r.EndAt.Before(r.StartAt) {
		return *r.EndAt, r.StartAt, false
	}
	return r.StartAt, *r.EndAt, false
}

// overlaps reports whether two sessions share any time. Sessions that start at
// the same instant always overlap, so zero-length duplicates are caught too.
func overlaps(a, b model.RunSession) bool {
	if a.StartAt.Equal(b.StartAt) {
		return true
	}
	aStart, aEnd, aOpen := span(a)
	bStart, bEnd, bOpen := span(b)
	return (bOpen || aStart.Before(bEnd)) && (aOpen || bStart.Before(aEnd))
}

// CombineDateTime builds an instant from a "2006-01-02" date and a "15:04" or
// "15:04:05" clock time in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("%w: date and time are required", errs.ErrInvalidTime)
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot combine date %q and time %q", errs.ErrInvalidTime, date, clock)
}

func sortSessions(s []model.RunSession) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].StartAt.Equal(s[j].StartAt) {
			return s[i].StartAt.Before(s[j].StartAt)
		}
		return s[i].ID < s[j].ID
	})
}

func lastByStart(history []model.RunSession) (model.RunSession, bool) {
	if len(history) == 0 {
		return model.RunSession{}, false
	}
	last := history[0]
	for _, r := range history[1:] {
		if r.StartAt.After(last.StartAt) || (r.StartAt.Equal(last.StartAt) && r.ID > last.ID) {
			last = r
		}
	}
	return last, true
}
