package core

// ServiceOption customizes a Service at construction.
type ServiceOption func(*Service)

// WithLogger routes service logging through logger. A nil logger keeps
// the no-op default.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder records per-operation outcomes and timings.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer emits one span per service operation.
func WithTracer(tr Tracer) ServiceOption {
	return func(s *Service) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

// WithAuditRecorder records an audit entry per service operation.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}
