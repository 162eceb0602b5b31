package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/patient"
)

type fakeApptRepo struct {
	appointment.Repository
	due []appointment.Appointment
}

func (r *fakeApptRepo) FindDueBetween(context.Context, time.Time, time.Time) ([]appointment.Appointment, error) {
	return r.due, nil
}

type fakeDirectory struct {
	byID map[uuid.UUID]*patient.Patient
}

func (d *fakeDirectory) FindByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if p, ok := d.byID[id]; ok {
		return p, nil
	}
	return nil, patient.ErrPatientNotFound
}

func (d *fakeDirectory) FindByPhone(context.Context, string) (*patient.Patient, error) {
	return nil, patient.ErrPatientNotFound
}

func (d *fakeDirectory) FindByIDs(context.Context, []uuid.UUID) ([]patient.Patient, error) {
	return nil, nil
}

type memMarkers struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newMemMarkers() *memMarkers { return &memMarkers{claimed: map[string]bool{}} }

func (m *memMarkers) Claim(_ context.Context, id uuid.UUID, window Window) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.String() + "/" + string(window)
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []string // destination numbers
	err  error
}

func (t *fakeTransport) Send(_ context.Context, to, _ string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return "", t.err
	}
	t.sent = append(t.sent, to)
	return "SM1", nil
}

type nopAudit struct{}

func (nopAudit) Append(context.Context, comms.Record) error { return nil }
func (nopAudit) ListByPatient(context.Context, uuid.UUID, int) ([]comms.Record, error) {
	return nil, nil
}

func fixedNow() time.Time {
	return time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
}

func testService(due []appointment.Appointment, dir *fakeDirectory, transport *fakeTransport, markers MarkerStore) *Service {
	svc := NewService(&fakeApptRepo{due: due}, dir, transport, nopAudit{}, markers)
	svc.now = fixedNow
	return svc
}

func apptFor(patientID uuid.UUID, in time.Duration) appointment.Appointment {
	return appointment.Appointment{
		ID:          uuid.New(),
		PatientID:   &patientID,
		ScheduledAt: fixedNow().Add(in),
		Reason:      appointment.DefaultReason,
		Status:      appointment.StatusConfirmed,
	}
}

func TestRunSweepSendsReminders(t *testing.T) {
	phone := "+15551234567"
	p := &patient.Patient{ID: uuid.New(), Name: "Ada", CellPhone: &phone}
	dir := &fakeDirectory{byID: map[uuid.UUID]*patient.Patient{p.ID: p}}
	transport := &fakeTransport{}

	svc := testService([]appointment.Appointment{apptFor(p.ID, 30*time.Minute)}, dir, transport, newMemMarkers())

	report, err := svc.RunSweep(context.Background(), WindowHourly)
	require.NoError(t, err)
	require.Equal(t, 1, report.Due)
	require.Equal(t, 1, report.Sent)
	require.Equal(t, []string{phone}, transport.sent)
}

func TestRunSweepSkipsPatientWithoutPhone(t *testing.T) {
	withPhone := "+15551234567"
	pA := &patient.Patient{ID: uuid.New(), Name: "Ada", CellPhone: &withPhone}
	pB := &patient.Patient{ID: uuid.New(), Name: "Ben"} // no number
	dir := &fakeDirectory{byID: map[uuid.UUID]*patient.Patient{pA.ID: pA, pB.ID: pB}}
	transport := &fakeTransport{}

	due := []appointment.Appointment{
		apptFor(pB.ID, 30*time.Minute),
		apptFor(pA.ID, 45*time.Minute),
	}
	svc := testService(due, dir, transport, newMemMarkers())

	report, err := svc.RunSweep(context.Background(), WindowHourly)
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	// The sweep continued past the skipped appointment.
	require.Equal(t, 1, report.Sent)
	require.Equal(t, []string{withPhone}, transport.sent)
}

func TestRunSweepDoesNotDoubleSend(t *testing.T) {
	phone := "+15551234567"
	p := &patient.Patient{ID: uuid.New(), Name: "Ada", CellPhone: &phone}
	dir := &fakeDirectory{byID: map[uuid.UUID]*patient.Patient{p.ID: p}}
	transport := &fakeTransport{}
	markers := newMemMarkers()

	due := []appointment.Appointment{apptFor(p.ID, 30*time.Minute)}
	svc := testService(due, dir, transport, markers)

	// Two overlapping sweeps of the same window.
	first, err := svc.RunSweep(context.Background(), WindowHourly)
	require.NoError(t, err)
	second, err := svc.RunSweep(context.Background(), WindowHourly)
	require.NoError(t, err)

	require.Equal(t, 1, first.Sent)
	require.Equal(t, 0, second.Sent)
	require.Equal(t, 1, second.Deduped)
	require.Len(t, transport.sent, 1)
}

func TestRunSweepSeparateWindowsClaimSeparately(t *testing.T) {
	phone := "+15551234567"
	p := &patient.Patient{ID: uuid.New(), Name: "Ada", CellPhone: &phone}
	dir := &fakeDirectory{byID: map[uuid.UUID]*patient.Patient{p.ID: p}}
	transport := &fakeTransport{}
	markers := newMemMarkers()

	due := []appointment.Appointment{apptFor(p.ID, 30*time.Minute)}
	svc := testService(due, dir, transport, markers)

	_, err := svc.RunSweep(context.Background(), WindowDaily)
	require.NoError(t, err)
	report, err := svc.RunSweep(context.Background(), WindowHourly)
	require.NoError(t, err)

	// The daily reminder does not suppress the closer-in hourly one.
	require.Equal(t, 1, report.Sent)
	require.Len(t, transport.sent, 2)
}

func TestRunSweepCountsSendFailures(t *testing.T) {
	phone := "+15551234567"
	p := &patient.Patient{ID: uuid.New(), Name: "Ada", CellPhone: &phone}
	dir := &fakeDirectory{byID: map[uuid.UUID]*patient.Patient{p.ID: p}}
	transport := &fakeTransport{err: errors.New("provider down")}

	svc := testService([]appointment.Appointment{apptFor(p.ID, 30*time.Minute)}, dir, transport, newMemMarkers())

	report, err := svc.RunSweep(context.Background(), WindowHourly)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 0, report.Sent)
}

func TestRunSweepUnknownWindow(t *testing.T) {
	svc := testService(nil, &fakeDirectory{}, &fakeTransport{}, newMemMarkers())

	_, err := svc.RunSweep(context.Background(), Window("weekly"))
	require.ErrorIs(t, err, ErrUnknownWindow)
}
