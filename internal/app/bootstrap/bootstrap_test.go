package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/events"
	"github.com/wolfman30/clinic-reminders/internal/notify"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true))
}

func TestBuildAppointmentStoreSelection(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := BuildAppointmentStore(ctx, &appconfig.Config{ReminderStore: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &appointments.MemoryStore{}, store)
	closeFn()

	path := filepath.Join(t.TempDir(), "appointments.json")
	store, _, err = BuildAppointmentStore(ctx, &appconfig.Config{ReminderStore: "FILE", AppointmentsFile: path}, nil)
	require.NoError(t, err)
	assert.IsType(t, &appointments.FileStore{}, store)

	_, _, err = BuildAppointmentStore(ctx, &appconfig.Config{ReminderStore: "file"}, nil)
	assert.ErrorContains(t, err, "APPOINTMENTS_FILE")

	_, _, err = BuildAppointmentStore(ctx, &appconfig.Config{ReminderStore: "postgres"}, nil)
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, _, err = BuildAppointmentStore(ctx, &appconfig.Config{ReminderStore: "dynamodb"}, nil)
	assert.ErrorContains(t, err, "APPOINTMENTS_TABLE")

	_, closeFn, err = BuildAppointmentStore(ctx, &appconfig.Config{ReminderStore: "mongo"}, nil)
	assert.ErrorContains(t, err, "unknown REMINDER_STORE")
	require.NotNil(t, closeFn)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.ReminderSentV1
}

func (p *capturePublisher) PublishReminderSent(ctx context.Context, evt events.ReminderSentV1) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func TestBuildReminderServiceEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		phones []string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		phones = append(phones, body["to"])
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	env := map[string]string{
		"SMS_GATEWAY_URL": gateway.URL,
		"EMAIL_ENABLED":   "false",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	at := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)
	store := appointments.NewMemoryStore(appointments.Appointment{
		ID:           "a1",
		PatientName:  "Lan",
		PatientPhone: "0901 234 567",
		Date:         at.Format(time.DateOnly),
		Time:         at.Format("15:04"),
		Status:       appointments.StatusConfirmed,
	})
	mr := miniredis.RunT(t)
	redisClient := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true)
	require.NotNil(t, redisClient)
	t.Cleanup(func() { _ = redisClient.Close() })

	pub := &capturePublisher{}
	cfg := &appconfig.Config{
		StrictDeliveryMode: true,
		ClinicTimezone:     "UTC",
		ClinicName:         "An Tâm",
		ReminderLocale:     "vi",
		ReminderLockTTL:    time.Minute,
	}
	svc, err := BuildReminderService(context.Background(), cfg, ReminderDeps{
		Store:      store,
		Redis:      redisClient,
		Publisher:  pub,
		Registerer: prometheus.NewRegistry(),
		Lookup:     lookup,
	}, nil)
	require.NoError(t, err)

	res, err := svc.Scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reminders.RunResult{Sent24h: 1}, res)

	mu.Lock()
	assert.Equal(t, []string{"+84901234567"}, phones)
	mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, []string{"sms"}, pub.events[0].Channels)
	assert.False(t, mr.Exists("clinic:reminders:lock:run"), "lock released after the pass")

	all, err := store.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Reminders.Sent24h)
}

func TestBuildReminderServiceRequiresStore(t *testing.T) {
	_, err := BuildReminderService(context.Background(), &appconfig.Config{}, ReminderDeps{}, nil)
	assert.ErrorContains(t, err, "store is required")
}

func TestBuildReminderServiceRejectsUnknownTimezone(t *testing.T) {
	_, err := BuildReminderService(context.Background(), &appconfig.Config{ClinicTimezone: "Asia/Ho_Chi_Mihn"}, ReminderDeps{
		Store:      appointments.NewMemoryStore(),
		Publisher:  &capturePublisher{},
		Registerer: prometheus.NewRegistry(),
	}, nil)
	assert.ErrorContains(t, err, "CLINIC_TIMEZONE")
}

func TestSESFactoryIsLazy(t *testing.T) {
	var built int
	factory := func(ctx context.Context, region string) (notify.SESAPI, error) {
		built++
		return nil, nil
	}
	_, err := BuildReminderService(context.Background(), &appconfig.Config{}, ReminderDeps{
		Store:      appointments.NewMemoryStore(),
		Publisher:  &capturePublisher{},
		Registerer: prometheus.NewRegistry(),
		NewSES:     factory,
		Lookup:     func(string) (string, bool) { return "", false },
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, built, "SES client is only built when an email is routed to it")
}
