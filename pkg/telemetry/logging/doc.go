// Package logging provides structured logging with PII redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON, text and console output
//   - redaction of secrets and personal data in attributes
//   - tenant, bot, evaluation and trace ids taken from the context
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithTenantID(ctx, "acme")
//	logger.InfoContext(ctx, "evaluation recorded", "passed", false)
//
//	// Components take a *slog.Logger.
//	registry := manager.NewRegistry(manager.WithLogger(logger.Component("registry")))
//
// # PII Redaction
//
// When RedactPII is set, the handler masks:
//
//   - values of keys such as password, token, secret: sk-abc123xyz → sk-a***
//   - bearer tokens: Bearer eyJ... → Bearer ***
//   - SSNs: 123-45-6789 → ***-**-****
//   - card numbers: 4111 1111 1111 1111 → ****-****-****-1111
//   - emails: jane@example.com → j***@example.com
package logging
