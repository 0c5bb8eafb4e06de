package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func query(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogModeReturnsCopy(t *testing.T) {
	gormLog, _ := newObservedGormLogger(gormlogger.Info)

	warn, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.level)
	assert.Equal(t, gormlogger.Info, gormLog.level)
}

func TestGormLogger_MessagesRespectLevel(t *testing.T) {
	gormLog, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	gormLog.Info(ctx, "migrated %d tables", 3)
	gormLog.Warn(ctx, "deprecated %s", "tag")
	gormLog.Error(ctx, "failed: %v", errors.New("boom"))

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "deprecated tag", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
	assert.Equal(t, "failed: boom", logs[1].Message)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		opts      []GormLoggerOption
		elapsed   time.Duration
		err       error
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{
			name:      "statement logs at debug",
			level:     gormlogger.Info,
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "SQL",
		},
		{
			name:      "failure logs at error",
			level:     gormlogger.Error,
			err:       errors.New("connection reset"),
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "SQL error",
		},
		{
			name:      "slow statement logs at warn",
			level:     gormlogger.Warn,
			opts:      []GormLoggerOption{WithSlowThreshold(10 * time.Millisecond)},
			elapsed:   50 * time.Millisecond,
			wantLevel: zapcore.WarnLevel,
			wantMsg:   "Slow SQL",
		},
		{
			name:      "not found logged when asked",
			level:     gormlogger.Error,
			opts:      []GormLoggerOption{WithRecordNotFound()},
			err:       gormlogger.ErrRecordNotFound,
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "SQL error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormLog, recorded := newObservedGormLogger(tt.level, tt.opts...)

			gormLog.Trace(context.Background(), time.Now().Add(-tt.elapsed), query("SELECT * FROM members", 1), tt.err)

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
			assert.Equal(t, tt.wantMsg, logs[0].Message)
			assert.Equal(t, "SELECT * FROM members", logs[0].ContextMap()["sql"])
		})
	}
}

func TestGormLogger_Trace_Suppressed(t *testing.T) {
	tests := []struct {
		name  string
		level gormlogger.LogLevel
		err   error
	}{
		{"silent", gormlogger.Silent, errors.New("boom")},
		{"fast statement below info", gormlogger.Warn, nil},
		{"record not found by default", gormlogger.Info, gormlogger.ErrRecordNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormLog, recorded := newObservedGormLogger(tt.level)
			called := false
			fc := func() (string, int64) {
				called = true
				return "SELECT 1", 0
			}

			gormLog.Trace(context.Background(), time.Now(), fc, tt.err)

			if tt.level < gormlogger.Info {
				assert.False(t, called, "statement should not be rendered")
			}
			for _, entry := range recorded.All() {
				assert.NotEqual(t, zapcore.ErrorLevel, entry.Level)
			}
			if tt.level != gormlogger.Info {
				assert.Empty(t, recorded.All())
			}
		})
	}
}

func TestGormLogger_Trace_ContextIDs(t *testing.T) {
	gormLog, recorded := newObservedGormLogger(gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
	ctx, _ = WithSessionID(ctx, zap.NewNop(), "5b1c7c1e-8f0a-4c55-9a35-3e7c2d8f1a10")
	gormLog.Trace(ctx, time.Now(), query("SELECT * FROM members", 1), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "5b1c7c1e-8f0a-4c55-9a35-3e7c2d8f1a10", fields["session_id"])
}

func TestGormLogger_Trace_MasksCardLiterals(t *testing.T) {
	gormLog, recorded := newObservedGormLogger(gormlogger.Info)

	insert := `INSERT INTO "stored_cards" ("token","last4") VALUES ('tk-9f3a','0004')`
	gormLog.Trace(context.Background(), time.Now(), query(insert, 1), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	sql := logs[0].ContextMap()["sql"].(string)
	assert.NotContains(t, sql, "tk-9f3a")
	assert.Contains(t, sql, `VALUES ('***','***')`)
}

func TestRedactSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "card table",
			sql:  `SELECT * FROM "stored_cards" WHERE token = 'abc' AND member_id = 'm-1'`,
			want: `SELECT * FROM "stored_cards" WHERE token = '***' AND member_id = '***'`,
		},
		{
			name: "escaped quote",
			sql:  `UPDATE STORED_CARDS SET holder_name = 'O''Brien'`,
			want: `UPDATE STORED_CARDS SET holder_name = '***'`,
		},
		{
			name: "other table untouched",
			sql:  `SELECT * FROM members WHERE email = 'dana@example.org'`,
			want: `SELECT * FROM members WHERE email = 'dana@example.org'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactSQL(tt.sql))
		})
	}
}

func TestMapGormLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"WARN":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"unknown": gormlogger.Warn,
		"":        gormlogger.Warn,
	}
	for level, want := range tests {
		assert.Equal(t, want, MapGormLogLevel(level), level)
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
