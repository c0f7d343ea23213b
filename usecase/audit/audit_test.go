package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/repository/memory"
)

type captureBuffer struct {
	records []domain.AuditRecord
	err     error
}

func (b *captureBuffer) BufferAudit(_ context.Context, record *domain.AuditRecord) error {
	if b.err != nil {
		return b.err
	}
	b.records = append(b.records, *record)
	return nil
}

func sampleRecord() domain.AuditRecord {
	return domain.NewAuditRecord(
		domain.EntityRef{Type: domain.EntityContribution, ID: "c1"},
		"contribution.succeeded", nil, domain.SourceWebhook,
		map[string]string{"status": "PENDING"},
		map[string]string{"status": "SUCCEEDED"},
	)
}

func TestRecordAppends(t *testing.T) {
	store := memory.New()
	recorder := New(store.Audit(), nil, nil)

	recorder.Record(context.Background(), sampleRecord())

	records := store.AuditRecords()
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].CreatedAt.IsZero())
	assert.JSONEq(t, `{"status":"PENDING"}`, string(records[0].Before))
}

func TestRecordFallsBackToBuffer(t *testing.T) {
	store := memory.New()
	buf := &captureBuffer{}
	recorder := New(store.Audit(), buf, nil)

	store.FailNext(memory.OpAuditAppend, errors.New("db down"))
	recorder.Record(context.Background(), sampleRecord())

	assert.Empty(t, store.AuditRecords())
	require.Len(t, buf.records, 1)
	assert.NotEmpty(t, buf.records[0].ID)
}

func TestRecordNeverFails(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := memory.New()
	recorder := New(store.Audit(), &captureBuffer{err: errors.New("disk full")}, zap.New(core))

	store.FailNext(memory.OpAuditAppend, errors.New("db down"))
	assert.NotPanics(t, func() { recorder.Record(context.Background(), sampleRecord()) })

	assert.Equal(t, 1, logs.FilterMessage("audit record dropped").Len())
}

func TestRecordAllKeepsOrder(t *testing.T) {
	store := memory.New()
	recorder := New(store.Audit(), nil, nil)
	first, second := sampleRecord(), sampleRecord()
	second.Action = "aggregate.forward"

	recorder.RecordAll(context.Background(), []domain.AuditRecord{first, second})

	records := store.AuditRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "contribution.succeeded", records[0].Action)
	assert.Equal(t, "aggregate.forward", records[1].Action)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	assert.NotPanics(t, func() { recorder.Record(context.Background(), sampleRecord()) })
}
