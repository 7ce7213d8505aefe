package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/healthpal/backend/internal/adherence"
	"github.com/healthpal/backend/internal/audit"
	"github.com/healthpal/backend/internal/handler"
	"github.com/healthpal/backend/internal/repository"
	"github.com/healthpal/backend/internal/security"
	"github.com/healthpal/backend/internal/service"
	"github.com/healthpal/backend/pkg/model"
)

// TestAdherenceFlowIntegration exercises the complete dose tracking flow:
// create a medication, resolve the day's due doses, log outcomes, and
// read the aggregates back.
func TestAdherenceFlowIntegration(t *testing.T) {
	// Skip if not in integration test mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	// Initialize database
	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	encryptor := newTestEncryptor(t)

	// Initialize repositories
	medicationRepo := repository.NewMedicationRepository(db, logger)
	adherenceRepo := repository.NewAdherenceRepository(db, encryptor, logger)
	symptomRepo := repository.NewSymptomRepository(db, encryptor, logger)
	preferencesRepo := repository.NewPreferencesRepository(db, logger)

	// Initialize services
	clock := adherence.SystemClock{}
	medicationService := service.NewMedicationService(medicationRepo, logger)
	adherenceService := service.NewAdherenceService(medicationRepo, adherenceRepo, clock, logger)
	symptomService := service.NewSymptomService(symptomRepo, clock, logger)
	progressService := service.NewProgressService(adherenceRepo, symptomRepo, clock, logger)
	preferencesService := service.NewPreferencesService(preferencesRepo, logger)

	// Initialize handlers
	auditLogger := audit.NewLogger(db, logger)
	medicationHandler := handler.NewMedicationHandler(medicationService, auditLogger, logger)
	adherenceHandler := handler.NewAdherenceHandler(adherenceService, auditLogger, logger)
	symptomHandler := handler.NewSymptomHandler(symptomService, auditLogger, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)
	preferencesHandler := handler.NewPreferencesHandler(preferencesService, auditLogger, logger)

	// Setup Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.POST("/medications", medicationHandler.CreateMedication)
		v1.GET("/medications", medicationHandler.ListMedications)
		v1.POST("/medications/:id/deactivate", medicationHandler.DeactivateMedication)
		v1.DELETE("/medications/:id", medicationHandler.DeleteMedication)

		v1.GET("/adherence/due", adherenceHandler.GetDueDoses)
		v1.POST("/adherence/:id/take", adherenceHandler.TakeDose)
		v1.POST("/adherence/:id/miss", adherenceHandler.MissDose)
		v1.POST("/adherence/:id/snooze", adherenceHandler.SnoozeDose)
		v1.POST("/adherence/:id/skip", adherenceHandler.SkipDose)
		v1.GET("/adherence/streak", adherenceHandler.GetStreak)

		v1.POST("/symptoms", symptomHandler.LogSymptoms)
		v1.GET("/symptoms", symptomHandler.GetSymptoms)

		v1.GET("/progress/summary", progressHandler.GetSummary)

		v1.GET("/preferences/:user_id", preferencesHandler.GetPreferences)
		v1.PUT("/preferences/:user_id", preferencesHandler.UpdatePreferences)
	}

	userID := uuid.New().String()

	t.Run("Complete dose tracking flow", func(t *testing.T) {
		// Step 1: Create a twice-daily medication
		t.Log("Step 1: Creating medication")
		medicationID := createTestMedication(t, router, userID)
		require.NotEmpty(t, medicationID)

		// Step 2: Resolve today's due doses
		t.Log("Step 2: Resolving due doses")
		due := getDueDoses(t, router, userID)
		require.Len(t, due, 2, "Twice-daily schedule should yield two occurrences")
		assert.Equal(t, string(model.StatusPending), due[0].recordStatus)
		assert.True(t, due[0].hour <= due[1].hour, "Occurrences should be ordered by reminder time")

		// Step 3: A second resolution reuses the same records
		t.Log("Step 3: Verifying idempotent resolution")
		dueAgain := getDueDoses(t, router, userID)
		require.Len(t, dueAgain, 2)
		assert.Equal(t, due[0].recordID, dueAgain[0].recordID)
		assert.Equal(t, due[1].recordID, dueAgain[1].recordID)

		// Step 4: Take the morning dose
		t.Log("Step 4: Taking the morning dose")
		resp := postJSON(t, router, "/api/v1/adherence/"+due[0].recordID+"/take",
			`{"entry_method":"manual","notes":"with breakfast"}`)
		assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var taken model.AdherenceRecord
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &taken))
		assert.Equal(t, model.StatusTaken, taken.Status)
		require.NotNil(t, taken.ActualTakenTime)
		require.NotNil(t, taken.Notes)
		assert.Equal(t, "with breakfast", *taken.Notes)

		// Step 5: Snooze the evening dose
		t.Log("Step 5: Snoozing the evening dose")
		resp = postJSON(t, router, "/api/v1/adherence/"+due[1].recordID+"/snooze", `{"duration_minutes":15,"reason":"in_meeting"}`)
		assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var snoozed struct {
			Record           model.AdherenceRecord `json:"record"`
			DurationMinutes  int                   `json:"duration_minutes"`
			NextReminderTime time.Time             `json:"next_reminder_time"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snoozed))
		assert.Equal(t, model.StatusSnoozed, snoozed.Record.Status)
		assert.Equal(t, 1, snoozed.Record.SnoozeCount)
		assert.Equal(t, 15, snoozed.DurationMinutes)
		assert.True(t, snoozed.NextReminderTime.After(time.Now()))

		// Step 6: A disallowed snooze interval is rejected
		t.Log("Step 6: Rejecting a disallowed snooze interval")
		resp = postJSON(t, router, "/api/v1/adherence/"+due[1].recordID+"/snooze", `{"duration_minutes":45}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

		// Step 7: The snoozed dose can still be taken
		t.Log("Step 7: Taking the snoozed dose")
		resp = postJSON(t, router, "/api/v1/adherence/"+due[1].recordID+"/take", `{"entry_method":"reminder_response"}`)
		assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &taken))
		assert.Equal(t, model.StatusTaken, taken.Status)
		assert.Equal(t, 1, taken.SnoozeCount, "Snooze history survives the transition")
		require.Len(t, taken.SnoozeHistory, 1)
		assert.Equal(t, 15, taken.SnoozeHistory[0].DurationMinutes)

		// Step 8: Streak counts today
		t.Log("Step 8: Verifying streak")
		streak := getStreak(t, router, userID)
		assert.Equal(t, 1, streak)

		// Step 9: Progress summary reflects the day
		t.Log("Step 9: Verifying progress summary")
		summary := getProgressSummary(t, router, userID, 7)
		assert.Equal(t, 2, summary.StatusCounts[string(model.StatusTaken)])
		assert.InDelta(t, 1.0, summary.AdherenceRate, 0.0001)
		assert.Equal(t, 1, summary.CurrentStreak)
	})

	t.Run("Missed dose with reason", func(t *testing.T) {
		missUserID := uuid.New().String()
		createTestMedication(t, router, missUserID)

		due := getDueDoses(t, router, missUserID)
		require.NotEmpty(t, due)

		resp := postJSON(t, router, "/api/v1/adherence/"+due[0].recordID+"/miss", `{"reason":"side_effects","notes":"nausea after last dose"}`)
		assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var missed model.AdherenceRecord
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &missed))
		assert.Equal(t, model.StatusMissed, missed.Status)
		require.NotNil(t, missed.MissReason)
		assert.True(t, missed.MissReason.RequiresAttention())
		assert.Nil(t, missed.ActualTakenTime)
	})

	t.Run("Deactivated medication stops producing due doses", func(t *testing.T) {
		inactiveUserID := uuid.New().String()
		medicationID := createTestMedication(t, router, inactiveUserID)

		due := getDueDoses(t, router, inactiveUserID)
		require.Len(t, due, 2)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/medications/"+medicationID+"/deactivate?user_id="+inactiveUserID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		due = getDueDoses(t, router, inactiveUserID)
		assert.Len(t, due, 0, "Inactive medications produce no due doses")
	})

	t.Run("Adherence history survives medication deletion", func(t *testing.T) {
		deleteUserID := uuid.New().String()
		medicationID := createTestMedication(t, router, deleteUserID)

		due := getDueDoses(t, router, deleteUserID)
		require.NotEmpty(t, due)

		resp := postJSON(t, router, "/api/v1/adherence/"+due[0].recordID+"/take", `{"entry_method":"manual"}`)
		require.Equal(t, http.StatusOK, resp.Code)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/medications/"+medicationID+"?user_id="+deleteUserID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		summary := getProgressSummary(t, router, deleteUserID, 7)
		assert.Equal(t, 1, summary.StatusCounts[string(model.StatusTaken)], "History outlives the medication")
	})

	t.Run("Unknown records and medications return not found", func(t *testing.T) {
		resp := postJSON(t, router, "/api/v1/adherence/no-such-record/take", `{"entry_method":"manual"}`)
		assert.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())

		medBody := `{"user_id":"ghost","name":"Lisinopril","dosage":"10mg","schedule_type":"daily","reminder_slots":[{"hour":9,"minute":0,"enabled":true}]}`
		req := httptest.NewRequest(http.MethodPut, "/api/v1/medications/no-such-medication", bytes.NewBufferString(medBody))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

		req = httptest.NewRequest(http.MethodDelete, "/api/v1/medications/no-such-medication?user_id=ghost", nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Symptom entry and preferences round-trip", func(t *testing.T) {
		symptomUserID := uuid.New().String()

		body := fmt.Sprintf(`{"user_id":"%s","pain_level":2,"fatigue_level":3,"mood_level":4,"notes":"decent day","triggers":["poor sleep"]}`, symptomUserID)
		resp := postJSON(t, router, "/api/v1/symptoms", body)
		assert.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/symptoms?user_id="+symptomUserID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var entry model.SymptomEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
		require.NotNil(t, entry.PainLevel)
		assert.Equal(t, 2, *entry.PainLevel)
		require.NotNil(t, entry.Notes)
		assert.Equal(t, "decent day", *entry.Notes)

		// Preferences default, then update
		req = httptest.NewRequest(http.MethodGet, "/api/v1/preferences/"+symptomUserID, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var prefs model.UserPreferences
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
		assert.True(t, prefs.ShowStreakCounter)

		prefsBody := `{"enable_daily_symptom_check":false,"show_streak_counter":false,"enable_push_notifications":true,"data_retention_days":90}`
		req = httptest.NewRequest(http.MethodPut, "/api/v1/preferences/"+symptomUserID, bytes.NewBufferString(prefsBody))
		req.Header.Set("Content-Type", "application/json")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

		req = httptest.NewRequest(http.MethodGet, "/api/v1/preferences/"+symptomUserID, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
		assert.False(t, prefs.ShowStreakCounter)
		assert.Equal(t, 90, prefs.DataRetentionDays)
	})
}

// dueDose is the slice of the due-dose response the tests care about
type dueDose struct {
	recordID     string
	recordStatus string
	hour         int
}

// createTestMedication creates a twice-daily medication and returns its ID
func createTestMedication(t *testing.T, router *gin.Engine, userID string) string {
	body := fmt.Sprintf(`{
		"user_id": %q,
		"name": "Metformin",
		"dosage": "500mg",
		"schedule_type": "daily",
		"reminder_slots": [
			{"hour": 8, "minute": 0, "enabled": true},
			{"hour": 20, "minute": 0, "enabled": true}
		],
		"snooze_intervals": [15, 30, 60]
	}`, userID)

	resp := postJSON(t, router, "/api/v1/medications", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var med model.Medication
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &med))
	require.NotEmpty(t, med.ID)

	return med.ID
}

// getDueDoses resolves today's due doses for a user
func getDueDoses(t *testing.T, router *gin.Engine, userID string) []dueDose {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/adherence/due?user_id="+userID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Due []struct {
			Slot struct {
				Hour int `json:"hour"`
			} `json:"slot"`
			Record struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"record"`
		} `json:"due"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	var due []dueDose
	for _, d := range response.Due {
		due = append(due, dueDose{
			recordID:     d.Record.ID,
			recordStatus: d.Record.Status,
			hour:         d.Slot.Hour,
		})
	}
	return due
}

// getStreak reads the current streak for a user
func getStreak(t *testing.T, router *gin.Engine, userID string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/adherence/streak?user_id="+userID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		StreakDays int `json:"streak_days"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.StreakDays
}

// getProgressSummary reads the progress summary for a user
func getProgressSummary(t *testing.T, router *gin.Engine, userID string, days int) *service.ProgressSummary {
	url := fmt.Sprintf("/api/v1/progress/summary?user_id=%s&days=%d", userID, days)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary service.ProgressSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	return &summary
}

// postJSON posts a JSON body and returns the recorder
func postJSON(t *testing.T, router *gin.Engine, url string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// newTestEncryptor builds an encryptor with a fixed test key
func newTestEncryptor(t *testing.T) *security.Encryptor {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	encryptor, err := security.NewEncryptor(key)
	require.NoError(t, err)
	return encryptor
}

// setupTestDatabase starts a PostgreSQL testcontainer and applies the schema
func setupTestDatabase(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("healthpal_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	require.NoError(t, db.Ping(ctx))

	applySchema(t, ctx, db)

	cleanup := func() {
		db.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

// applySchema creates the tables the repositories expect
func applySchema(t *testing.T, ctx context.Context, db *pgxpool.Pool) {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS medications (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			dosage VARCHAR(255) NOT NULL,
			instructions TEXT NOT NULL DEFAULT '',
			schedule_type VARCHAR(50) NOT NULL,
			allow_snooze BOOLEAN NOT NULL DEFAULT TRUE,
			snooze_intervals INTEGER[],
			color VARCHAR(50) NOT NULL DEFAULT '',
			shape VARCHAR(50) NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_slots (
			id VARCHAR(64) PRIMARY KEY,
			medication_id VARCHAR(64) NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
			hour INTEGER NOT NULL CHECK (hour >= 0 AND hour <= 23),
			minute INTEGER NOT NULL CHECK (minute >= 0 AND minute <= 59),
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			custom_days INTEGER[]
		)`,
		`CREATE TABLE IF NOT EXISTS adherence_records (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			medication_id VARCHAR(64) NOT NULL,
			scheduled_date DATE NOT NULL,
			scheduled_time TIMESTAMPTZ NOT NULL,
			status VARCHAR(50) NOT NULL,
			actual_taken_time TIMESTAMPTZ,
			logged_time TIMESTAMPTZ NOT NULL,
			delay_reason VARCHAR(50),
			miss_reason VARCHAR(50),
			notes TEXT,
			snooze_count INTEGER NOT NULL DEFAULT 0,
			entry_method VARCHAR(50) NOT NULL,
			UNIQUE (medication_id, scheduled_time)
		)`,
		`CREATE TABLE IF NOT EXISTS snooze_events (
			id VARCHAR(64) PRIMARY KEY,
			record_id VARCHAR(64) NOT NULL REFERENCES adherence_records(id) ON DELETE CASCADE,
			occurred_at TIMESTAMPTZ NOT NULL,
			duration_minutes INTEGER NOT NULL,
			reason VARCHAR(50)
		)`,
		`CREATE TABLE IF NOT EXISTS symptom_entries (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			entry_date DATE NOT NULL,
			pain_level INTEGER CHECK (pain_level >= 1 AND pain_level <= 5),
			fatigue_level INTEGER CHECK (fatigue_level >= 1 AND fatigue_level <= 5),
			mood_level INTEGER CHECK (mood_level >= 1 AND mood_level <= 5),
			notes TEXT,
			triggers TEXT[],
			entry_method VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, entry_date)
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id VARCHAR(64) PRIMARY KEY,
			enable_daily_symptom_check BOOLEAN NOT NULL DEFAULT TRUE,
			show_streak_counter BOOLEAN NOT NULL DEFAULT TRUE,
			enable_push_notifications BOOLEAN NOT NULL DEFAULT TRUE,
			quiet_hours_start VARCHAR(5),
			quiet_hours_end VARCHAR(5),
			data_retention_days INTEGER NOT NULL DEFAULT 365,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			operation_type VARCHAR(20) NOT NULL,
			resource_type VARCHAR(50) NOT NULL,
			resource_id VARCHAR(64),
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ip_address VARCHAR(64),
			user_agent TEXT,
			additional_data JSONB
		)`,
	}

	for _, migration := range migrations {
		_, err := db.Exec(ctx, migration)
		require.NoError(t, err)
	}
}
