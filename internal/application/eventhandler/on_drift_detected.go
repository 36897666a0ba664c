// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на результаты проверок соответствия и запускают
// побочные эффекты: структурированные логи и счётчики для мониторинга.
package eventhandler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON DRIFT DETECTED HANDLER
// Пишет в лог каждое расхождение между бэкендом и эталонным пересчётом.
//
// Событие может прийти двумя путями:
// - локально, как shared.ConformanceDriftEvent
// - из Redis, как восстановленное событие с payload в виде map
// ═══════════════════════════════════════════════════════════════════════════

// OnDriftDetectedHandler обрабатывает события о расхождениях и провалах проверок.
type OnDriftDetectedHandler struct {
	logger *slog.Logger
	config DriftDetectedConfig

	mu    sync.Mutex
	stats DriftStats
}

// DriftDetectedConfig содержит конфигурацию обработчика.
type DriftDetectedConfig struct {
	// MaxLoggedItems ограничивает число расхождений, выводимых по одному.
	// Остальные попадают в итоговую запись как "omitted".
	MaxLoggedItems int
}

// DefaultDriftDetectedConfig возвращает конфигурацию по умолчанию.
func DefaultDriftDetectedConfig() DriftDetectedConfig {
	return DriftDetectedConfig{MaxLoggedItems: 50}
}

// DriftStats - накопленная статистика обработчика.
type DriftStats struct {
	DriftEvents  int
	FailedEvents int
	Mismatches   int
	LastReportID string
	LastEventAt  time.Time
	LastFailure  string
}

// NewOnDriftDetectedHandler создаёт новый обработчик.
func NewOnDriftDetectedHandler(logger *slog.Logger, config DriftDetectedConfig) *OnDriftDetectedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxLoggedItems <= 0 {
		config.MaxLoggedItems = DefaultDriftDetectedConfig().MaxLoggedItems
	}
	return &OnDriftDetectedHandler{
		logger: logger.With("handler", "on_drift_detected"),
		config: config,
	}
}

// Handle обрабатывает событие.
// Реализует интерфейс shared.EventHandler.
func (h *OnDriftDetectedHandler) Handle(event shared.Event) error {
	switch event.EventType() {
	case shared.EventConformanceDrift:
		reportID, items, err := driftFromEvent(event)
		if err != nil {
			h.logger.Warn("malformed drift event", "error", err)
			return nil
		}
		h.handleDrift(reportID, items, event.OccurredAt())
	case shared.EventConformanceFailed:
		h.handleFailed(event)
	default:
		h.logger.Warn("received unexpected event",
			"event_type", event.EventType(),
		)
	}
	return nil
}

// Stats возвращает копию статистики.
func (h *OnDriftDetectedHandler) Stats() DriftStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *OnDriftDetectedHandler) handleDrift(reportID string, items []shared.DriftItem, at time.Time) {
	log := h.logger.With("report_id", reportID)

	for i, it := range items {
		if i >= h.config.MaxLoggedItems {
			break
		}
		log.Warn("backend value drifted",
			"subject", it.Subject,
			"field", it.Field,
			"expected", it.Expected,
			"actual", it.Actual,
		)
	}

	omitted := len(items) - h.config.MaxLoggedItems
	if omitted < 0 {
		omitted = 0
	}
	log.Error("conformance drift detected",
		"mismatches", len(items),
		"omitted", omitted,
	)

	h.mu.Lock()
	h.stats.DriftEvents++
	h.stats.Mismatches += len(items)
	h.stats.LastReportID = reportID
	h.stats.LastEventAt = at
	h.mu.Unlock()
}

func (h *OnDriftDetectedHandler) handleFailed(event shared.Event) {
	reason := ""
	if failed, ok := event.(shared.ConformanceFailedEvent); ok {
		reason = failed.Reason
	} else if r, ok := event.Payload()["reason"].(string); ok {
		reason = r
	}

	h.logger.Error("conformance run failed",
		"run_id", event.AggregateID(),
		"reason", reason,
	)

	h.mu.Lock()
	h.stats.FailedEvents++
	h.stats.LastFailure = reason
	h.stats.LastEventAt = event.OccurredAt()
	h.mu.Unlock()
}

// driftFromEvent достаёт расхождения из события. Для событий из Redis
// разбирается payload: после JSON числа приходят как float64.
func driftFromEvent(event shared.Event) (string, []shared.DriftItem, error) {
	if drift, ok := event.(shared.ConformanceDriftEvent); ok {
		return drift.ReportID, drift.Items, nil
	}

	payload := event.Payload()
	reportID, _ := payload["report_id"].(string)
	if reportID == "" {
		reportID = event.AggregateID()
	}

	var raw []interface{}
	switch v := payload["items"].(type) {
	case []interface{}:
		raw = v
	case []map[string]interface{}:
		for _, m := range v {
			raw = append(raw, m)
		}
	case nil:
		return reportID, nil, nil
	default:
		return "", nil, fmt.Errorf("items: unexpected type %T", v)
	}

	items := make([]shared.DriftItem, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			return "", nil, fmt.Errorf("items[%d]: unexpected type %T", i, r)
		}
		it := shared.DriftItem{}
		it.Subject, _ = m["subject"].(string)
		it.Field, _ = m["field"].(string)
		it.Expected, _ = m["expected"].(float64)
		it.Actual, _ = m["actual"].(float64)
		items = append(items, it)
	}
	return reportID, items, nil
}
