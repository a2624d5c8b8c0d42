package cli

import (
	"github.com/spf13/cobra"

	"github.com/punchamoorthee/payflow/internal/api"
	"github.com/punchamoorthee/payflow/internal/client"
	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/service"
	"github.com/punchamoorthee/payflow/internal/store"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Run the payment workflow service",
	RunE:  runPayment,
}

func runPayment(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, wait := newLogger("payment", cfg, true)
	defer wait()

	mem := store.NewMemoryStore()
	mailer := client.NewMailerClient(cfg.Payment.MailerURL, "payment", 0)
	wf := service.NewWorkflow(mem, mem, mem, mailer, logger, service.Options{
		Policy:        domain.TransitionPolicy{Strict: cfg.Payment.StrictTransitions},
		NotifyTimeout: cfg.Payment.NotifyTimeout,
		AsyncNotify:   cfg.Payment.AsyncNotify,
	})
	defer wf.Wait()

	logger.Info("payment service configured",
		"mailer_url", cfg.Payment.MailerURL,
		"strict_transitions", cfg.Payment.StrictTransitions,
		"async_notify", cfg.Payment.AsyncNotify)
	return serve(cmd.Context(), logger, listenPort(cfg.Payment.Port), api.NewPaymentRouter(wf, logger))
}
