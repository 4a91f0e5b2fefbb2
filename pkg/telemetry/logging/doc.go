// Package logging configures log/slog for Callisto.
//
// New returns a standard *slog.Logger backed by a JSON or text handler and
// wrapped in a Handler that:
//   - adds request_id, user_id and job fields stored in the context
//   - masks personal data when RedactPII is enabled
//
// # Usage
//
//	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "usage recorded", "tool", "claude")
//
// # Redaction
//
// Values under keys containing student_id, email, ip_address, user_agent,
// password, secret, token or authorization are masked. Other string values
// are scanned for:
//
//   - Emails: jane.doe@uni.example → j***@uni.example
//   - IPv4 addresses: 10.1.2.3 → 10.*.*.*
//   - Bearer tokens: Bearer abc → Bearer ***
//
// user_id is an opaque identifier and is logged as is.
package logging
