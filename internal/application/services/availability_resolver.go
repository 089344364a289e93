package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
	"github.com/zatekoja/erpbridge/backend/internal/domain/repositories"
	"github.com/zatekoja/erpbridge/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/erpbridge/backend/pkg/errors"
)

const chunkAuditTimeout = 5 * time.Second

// AvailabilityConfig tunes an AvailabilityResolver
type AvailabilityConfig struct {
	// DefaultMaxSpanDays applies to integrations without their own span
	DefaultMaxSpanDays int
	// DefaultCacheTTL applies to integrations without their own TTL
	DefaultCacheTTL time.Duration
	Audit           providers.AuditSink
	Metrics         *observability.Metrics
	Now             func() time.Time
}

// AvailabilityResolver computes the open slots a caller may book
type AvailabilityResolver struct {
	erp             providers.ERPProvider
	codes           providers.EntityCodeResolver
	externalDoctors repositories.ExternalDoctorRepository
	validator       providers.InterAppointmentValidator
	shaper          providers.SlotShaper
	cache           providers.CacheProvider
	defaultMaxSpan  int
	defaultTTL      time.Duration
	audit           providers.AuditSink
	metrics         *observability.Metrics
	now             func() time.Time
}

// NewAvailabilityResolver creates an availability resolver. externalDoctors,
// validator and cache may be nil; a nil shaper uses DefaultSlotShaper.
func NewAvailabilityResolver(
	erp providers.ERPProvider,
	codes providers.EntityCodeResolver,
	externalDoctors repositories.ExternalDoctorRepository,
	validator providers.InterAppointmentValidator,
	shaper providers.SlotShaper,
	cache providers.CacheProvider,
	cfg AvailabilityConfig,
) *AvailabilityResolver {
	if shaper == nil {
		shaper = NewDefaultSlotShaper()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AvailabilityResolver{
		erp:             erp,
		codes:           codes,
		externalDoctors: externalDoctors,
		validator:       validator,
		shaper:          shaper,
		cache:           cache,
		defaultMaxSpan:  cfg.DefaultMaxSpanDays,
		defaultTTL:      cfg.DefaultCacheTTL,
		audit:           cfg.Audit,
		metrics:         cfg.Metrics,
		now:             now,
	}
}

type chunkResult struct {
	slots []entities.RawAvailabilitySlot
	err   error
}

// ListAvailable returns the slots of req that survive doctor visibility and
// inter-appointment spacing, shaped by the caller's preferences
func (r *AvailabilityResolver) ListAvailable(
	ctx context.Context,
	integration *entities.Integration,
	req entities.AvailabilityRequest,
) ([]*entities.ResolvedSlot, *entities.AvailabilityMetadata, error) {
	ctx, span := observability.StartSpan(ctx, "AvailabilityResolver.ListAvailable",
		attribute.String("erp.integration_id", integration.ID),
		attribute.Int("window.from_day", req.FromDay),
		attribute.Int("window.until_day", req.UntilDay),
	)
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	now := r.now()
	today := startOfDay(now.In(integration.Location()))

	meta := &entities.AvailabilityMetadata{
		OriginalFromDay:  req.FromDay,
		EffectiveFromDay: req.FromDay,
		UntilDay:         req.UntilDay,
	}

	if req.FromDay < 0 {
		return nil, nil, apperrors.NewDateRangeInvalidError(fmt.Sprintf("fromDay %d is negative", req.FromDay))
	}

	var limitDay time.Time
	if req.DateLimit != nil {
		limitDay = startOfDay(req.DateLimit.In(today.Location()))
		start := today.AddDate(0, 0, req.FromDay+1)
		if start.After(limitDay) {
			err := apperrors.NewDateRangeInvalidError(fmt.Sprintf("search window starting %s ends after date limit %s",
				start.Format(time.DateOnly), limitDay.Format(time.DateOnly)))
			observability.RecordError(span, err)
			return nil, nil, err
		}
		// the window opens the day after fromDay and closes on the limit day
		meta.UntilDay = daysBetween(start, limitDay)
		if meta.UntilDay == 0 {
			return []*entities.ResolvedSlot{}, meta, nil
		}
	} else if meta.UntilDay <= 0 {
		return nil, nil, apperrors.NewDateRangeInvalidError(fmt.Sprintf("untilDay %d does not cover any day", meta.UntilDay))
	}

	exam, err := r.isExamContext(ctx, integration, req.Filter)
	if err != nil {
		observability.RecordError(span, err)
		return nil, nil, err
	}

	var spacing *entities.InterAppointmentResult
	if !exam && r.validator != nil && req.Patient != nil && req.Patient.Code != "" && req.Filter.Has(entities.EntityTypeInsurance) {
		spacing, err = r.validator.Validate(ctx, integration, req.Patient.Code, req.Filter)
		if err != nil {
			observability.RecordError(span, err)
			return nil, nil, err
		}
	}
	if spacing != nil && spacing.PeriodDays > meta.EffectiveFromDay {
		meta.WindowShifted = true
		meta.InterAppointmentPeriod = spacing.PeriodDays
		meta.EffectiveFromDay = spacing.PeriodDays
		if req.DateLimit != nil {
			meta.UntilDay = max(0, daysBetween(today.AddDate(0, 0, meta.EffectiveFromDay+1), limitDay))
		}
		logger.Info().
			Str("integration_id", integration.ID).
			Int("from_day", req.FromDay).
			Int("effective_from_day", meta.EffectiveFromDay).
			Msg("Search window shifted by inter-appointment period")
	}
	if meta.UntilDay == 0 {
		return []*entities.ResolvedSlot{}, meta, nil
	}

	startHour, endHour := req.Period.HourWindow()
	params, err := BuildAvailabilityParams(req.Filter, req.Patient, now)
	if err != nil {
		observability.RecordError(span, err)
		return nil, nil, err
	}
	base := entities.AvailabilityQuery{
		FromDate:     today.AddDate(0, 0, meta.EffectiveFromDay),
		UntilDate:    today.AddDate(0, 0, meta.EffectiveFromDay+meta.UntilDay),
		StartHour:    startHour,
		EndHour:      endHour,
		Params:       params,
		FollowUpOnly: req.FollowUpOnly,
	}
	if req.Patient != nil {
		base.PatientCode = req.Patient.Code
	}

	maxSpan := integration.Settings.MaxAvailabilitySpanDays
	if maxSpan <= 0 {
		maxSpan = r.defaultMaxSpan
	}
	if req.FollowUpOnly {
		maxSpan = 0
	}
	ranges := SplitDayRange(meta.EffectiveFromDay, meta.UntilDay, maxSpan)

	ttl := integration.Settings.AvailabilityCacheTTLSeconds
	if ttl <= 0 {
		ttl = int(r.defaultTTL.Seconds())
	}
	caching := r.cache != nil && ttl > 0
	key := AvailabilityCacheKey(integration.ID, base)

	var raw []entities.RawAvailabilitySlot
	cached := false
	if caching {
		raw, cached = r.readCache(ctx, key)
	}
	if cached {
		meta.FromCache = true
	} else {
		meta.ChunkCount = len(ranges)
		raw, meta.FailedChunks, err = r.fetch(ctx, integration, base, today, ranges)
		if err != nil {
			observability.RecordError(span, err)
			return nil, nil, err
		}
		if caching && meta.FailedChunks == 0 && len(raw) > 0 {
			r.writeCache(ctx, key, raw, ttl)
		}
	}
	meta.RawSlotCount = len(raw)

	resolved, err := r.resolveDoctors(ctx, integration, raw, exam, meta)
	if err != nil {
		observability.RecordError(span, err)
		return nil, nil, err
	}

	if spacing != nil && len(spacing.EarliestByDoctor) > 0 {
		kept := resolved[:0]
		for _, slot := range resolved {
			if earliest, ok := spacing.EarliestByDoctor[slot.DoctorCode]; ok && slot.Date.Before(earliest) {
				meta.DroppedByInterAppoint++
				continue
			}
			kept = append(kept, slot)
		}
		resolved = kept
	}

	sortByDate(resolved)
	if len(resolved) > 0 {
		first := resolved[0].Date
		meta.FirstAvailableDate = &first
	}

	shaped := r.shaper.Shape(resolved, providers.ShapeOptions{
		Period:     req.Period,
		Limit:      req.Limit,
		SortMethod: req.SortMethod,
	})

	span.SetAttributes(
		attribute.Int("slots.raw", meta.RawSlotCount),
		attribute.Int("slots.returned", len(shaped)),
		attribute.Int("chunks.failed", meta.FailedChunks),
	)
	logger.Debug().
		Str("integration_id", integration.ID).
		Int("chunks", meta.ChunkCount).
		Int("failed_chunks", meta.FailedChunks).
		Int("raw", meta.RawSlotCount).
		Int("dropped_by_doctor", meta.DroppedByDoctor).
		Int("dropped_by_inter_appointment", meta.DroppedByInterAppoint).
		Int("returned", len(shaped)).
		Msg("Resolved availability")

	return shaped, meta, nil
}

// fetch issues one upstream call per range. Ranges run concurrently and are
// merged in range order; failed ranges are dropped unless all of them fail.
func (r *AvailabilityResolver) fetch(
	ctx context.Context,
	integration *entities.Integration,
	base entities.AvailabilityQuery,
	today time.Time,
	ranges []DayRange,
) ([]entities.RawAvailabilitySlot, int, error) {
	if len(ranges) == 1 {
		slots, err := r.erp.ListAvailableSlots(ctx, integration, base)
		if err != nil {
			return nil, 0, asIntegrationError(integration, "failed to list available slots", err)
		}
		return slots, 0, nil
	}

	results := make([]chunkResult, len(ranges))
	var wg sync.WaitGroup
	for i, dayRange := range ranges {
		query := base
		query.FromDate = today.AddDate(0, 0, dayRange.From)
		query.UntilDate = today.AddDate(0, 0, dayRange.Until)

		wg.Add(1)
		go func(i int, query entities.AvailabilityQuery) {
			defer wg.Done()
			slots, err := r.erp.ListAvailableSlots(ctx, integration, query)
			results[i] = chunkResult{slots: slots, err: err}
		}(i, query)
	}
	wg.Wait()

	var merged []entities.RawAvailabilitySlot
	var errs []error
	for i, result := range results {
		if result.err != nil {
			errs = append(errs, result.err)
			r.chunkFailed(ctx, integration, ranges[i], result.err)
			continue
		}
		merged = append(merged, result.slots...)
	}

	if len(errs) == len(ranges) {
		return nil, len(errs), apperrors.NewIntegrationError(integration.ID,
			fmt.Sprintf("all %d availability chunks failed", len(ranges)), 0, errors.Join(errs...))
	}
	return merged, len(errs), nil
}

func (r *AvailabilityResolver) chunkFailed(ctx context.Context, integration *entities.Integration, dayRange DayRange, err error) {
	observability.LoggerFromContext(ctx).Warn().Err(err).
		Str("integration_id", integration.ID).
		Int("from_day", dayRange.From).
		Int("until_day", dayRange.Until).
		Msg("Dropping failed availability chunk")
	r.metrics.RecordChunkFailure(ctx, integration.ID)

	if r.audit == nil {
		return
	}
	event := providers.AuditEvent{
		IntegrationID: integration.ID,
		DataType:      providers.AuditDataTypeChunk,
		Identifier:    fmt.Sprintf("%d-%d", dayRange.From, dayRange.Until),
		Payload: map[string]any{
			"range": dayRange,
			"error": err.Error(),
		},
		CreatedAt: r.now(),
	}
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		logger := observability.LoggerFromContext(bgCtx)
		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Msg("Audit sink panicked")
			}
		}()
		auditCtx, cancel := context.WithTimeout(bgCtx, chunkAuditTimeout)
		defer cancel()
		if err := r.audit.Record(auditCtx, event); err != nil {
			logger.Warn().Err(err).Str("integration_id", event.IntegrationID).Msg("Failed to record chunk failure")
		}
	}()
}

// resolveDoctors applies the doctor visibility table to every slot. Exam
// contexts have no doctor of record and keep every slot.
func (r *AvailabilityResolver) resolveDoctors(
	ctx context.Context,
	integration *entities.Integration,
	raw []entities.RawAvailabilitySlot,
	exam bool,
	meta *entities.AvailabilityMetadata,
) ([]*entities.ResolvedSlot, error) {
	resolved := make([]*entities.ResolvedSlot, 0, len(raw))
	if exam {
		for i := range raw {
			resolved = append(resolved, &entities.ResolvedSlot{RawAvailabilitySlot: raw[i]})
		}
		return resolved, nil
	}

	doctorCodes := make([]string, 0, len(raw))
	for i := range raw {
		doctorCodes = append(doctorCodes, raw[i].DoctorCode)
	}
	doctorCodes = distinctNonEmpty(doctorCodes)

	internal, err := r.codes.ResolveCodes(ctx, integration, entities.EntityTypeDoctor, doctorCodes)
	if err != nil {
		return nil, err
	}

	externalRule := integration.Settings.ExternalDoctorsEnabled && r.externalDoctors != nil
	external := make(map[string]*entities.ExternalDoctor)
	if externalRule && len(doctorCodes) > 0 {
		found, err := r.externalDoctors.FindExternalDoctors(ctx, integration.ID, doctorCodes)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to load external doctors", err)
		}
		for _, doctor := range found {
			external[doctor.Code] = doctor
		}
	}

	for i := range raw {
		doctor := internal[raw[i].DoctorCode]
		externalDoctor := external[raw[i].DoctorCode]
		if !KeepDoctorSlot(externalRule, InternalStateOf(doctor), ExternalStateOf(externalDoctor)) {
			meta.DroppedByDoctor++
			continue
		}
		resolved = append(resolved, &entities.ResolvedSlot{
			RawAvailabilitySlot: raw[i],
			Doctor:              doctor,
			ExternalDoctor:      externalDoctor,
		})
	}
	return resolved, nil
}

// isExamContext reports whether the appointment type in filter schedules
// exams, which have no doctor of record
func (r *AvailabilityResolver) isExamContext(ctx context.Context, integration *entities.Integration, filter entities.CorrelationFilter) (bool, error) {
	code := filter.Code(entities.EntityTypeAppointmentType)
	if code == "" {
		return false, nil
	}
	found, err := r.codes.ResolveCodes(ctx, integration, entities.EntityTypeAppointmentType, []string{code})
	if err != nil {
		return false, err
	}
	appointmentType := found[code]
	return appointmentType != nil && appointmentType.Params.ScheduleType == entities.ScheduleTypeExam, nil
}

func (r *AvailabilityResolver) readCache(ctx context.Context, key string) ([]entities.RawAvailabilitySlot, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Availability cache read failed")
		}
		r.metrics.RecordCacheMiss(ctx, availabilityCacheNamespace)
		return nil, false
	}

	var slots []entities.RawAvailabilitySlot
	if err := json.Unmarshal(data, &slots); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Discarding unreadable availability cache entry")
		r.metrics.RecordCacheMiss(ctx, availabilityCacheNamespace)
		return nil, false
	}

	r.metrics.RecordCacheHit(ctx, availabilityCacheNamespace)
	return slots, true
}

func (r *AvailabilityResolver) writeCache(ctx context.Context, key string, slots []entities.RawAvailabilitySlot, ttlSeconds int) {
	data, err := json.Marshal(slots)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to marshal availability cache entry")
		return
	}
	if err := r.cache.Set(ctx, key, data, ttlSeconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Availability cache write failed")
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, ignoring DST shifts
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
