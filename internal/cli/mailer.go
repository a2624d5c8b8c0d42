package cli

import (
	"github.com/spf13/cobra"

	"github.com/punchamoorthee/payflow/internal/api"
	"github.com/punchamoorthee/payflow/internal/mailer"
)

var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Run the email notification service",
	RunE:  runMailer,
}

func runMailer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, wait := newLogger("mailer", cfg, true)
	defer wait()

	var reg *mailer.Registry
	if cfg.Mailer.TemplatesFile != "" {
		reg, err = mailer.LoadRegistryFile(cfg.Mailer.TemplatesFile)
	} else {
		reg, err = mailer.DefaultRegistry()
	}
	if err != nil {
		return err
	}

	var transport mailer.Transport
	if cfg.Mailer.DryRun {
		transport = mailer.DryRunTransport{Logger: logger}
		logger.Warn("dry run enabled, emails will be logged and not sent")
	} else {
		transport = mailer.NewSMTPTransport(mailer.SMTPConfig{
			Server:   cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Timeout:  cfg.SMTP.Timeout,
		})
	}

	g := mailer.NewGateway(reg, transport, cfg.Mailer.DefaultSender, logger)
	logger.Info("mailer configured", "smtp", cfg.SMTP.Server, "templates", len(g.Templates()))
	return serve(cmd.Context(), logger, listenPort(cfg.Mailer.Port), api.NewMailerRouter(g, logger))
}
