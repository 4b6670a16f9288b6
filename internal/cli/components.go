package cli

import (
	"github.com/R167/ipwatch/catalog"
	"github.com/R167/ipwatch/fetcher"
	"github.com/R167/ipwatch/internal/config"
	"github.com/R167/ipwatch/internal/output"
	"github.com/R167/ipwatch/internal/security"
	"github.com/R167/ipwatch/notify"
	"github.com/R167/ipwatch/resolver"
	"github.com/R167/ipwatch/state"
	"github.com/R167/ipwatch/watch"
)

// components is everything a command needs, built from one Config.
type components struct {
	cfg      config.Config
	out      output.Output
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	store    *state.Store
}

func newComponents(cfg config.Config, out output.Output) *components {
	echo := security.EchoClientConfig()
	echo.Timeout = cfg.FetchTimeout
	echo.InsecureSkipVerify = cfg.InsecureSkipVerify

	return &components{
		cfg: cfg,
		out: out,
		catalog: catalog.New(catalog.Config{
			ListURL:   cfg.ServerListURL,
			CachePath: cfg.ServerCachePath,
		}, out),
		resolver: resolver.New(fetcher.New(echo),
			resolver.WithOutput(out),
			resolver.WithSurveyWorkers(cfg.SurveyWorkers),
			resolver.WithSurveyLimiter(security.SurveyLimiter()),
		),
		store: state.New(cfg.SaveIPPath),
	}
}

// notifier prints every report and mails it when SMTP is configured.
func (c *components) notifier() notify.Notifier {
	n := notify.Fanout{notify.NewConsole(c.out)}
	if c.cfg.MailEnabled() {
		n = append(n, notify.NewMailer(notify.MailConfig{
			Host:     c.cfg.SMTPHost,
			Port:     c.cfg.SMTPPort,
			UseTLS:   c.cfg.UseTLS,
			Username: c.cfg.SenderUsername,
			Password: c.cfg.SenderPassword,
			From:     c.cfg.From(),
			To:       c.cfg.Recipients(),
			Subject:  c.cfg.SubjectLine,
		}))
	}
	return n
}

func (c *components) detector() *watch.Detector {
	return watch.NewDetector(c.store, c.catalog, c.resolver, c.notifier(), watch.Options{
		Machine:   c.cfg.Machine,
		TryCount:  c.cfg.TryCount,
		Blacklist: c.cfg.Blacklist(),
	}, c.out)
}
