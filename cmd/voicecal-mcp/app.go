package main

import (
	"io"
	"log/slog"
	"net/http"

	"voicecal-mcp/internal/alert"
	"voicecal-mcp/internal/calcom"
	"voicecal-mcp/internal/config"
	"voicecal-mcp/internal/elevenlabs"
	"voicecal-mcp/internal/logbuf"
	"voicecal-mcp/internal/logging"
	"voicecal-mcp/internal/mcp"
	"voicecal-mcp/internal/upstream"
)

// app holds the wired collaborators shared by serve and call.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	logs       *logbuf.Buffer
	sink       alert.Sink
	monitor    *alert.Monitor
	dispatcher *mcp.Dispatcher
	closer     io.Closer
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logs := logbuf.New(cfg.Log.BufferSize)
	logger, closer, err := logging.New(cfg.Log, logOut, logs)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	var sink alert.Sink = alert.LogSink{Logger: logging.Component(logger, "alert")}
	if e := cfg.Alerts.Email; e.Enabled() {
		sink = alert.MultiSink{sink, alert.NewMailSink(alert.MailConfig{
			Host:     e.Host,
			Port:     e.Port,
			Username: e.User,
			Password: e.Password,
			From:     e.From,
			To:       e.To,
		})}
	}
	monitor := alert.NewMonitor(
		alert.NewWindow(cfg.Alerts.ErrorThreshold, cfg.Alerts.ErrorWindow),
		sink,
		alert.WithSlowThreshold(cfg.Alerts.APIResponseThreshold),
		alert.WithLogger(logging.Component(logger, "alert")),
	)

	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}
	calClient := calcom.NewClient(cfg.CalCom.BaseURL, cfg.CalCom.APIKey,
		upstream.WithHTTPClient(httpClient),
		upstream.WithObserver(monitor),
		upstream.WithLogger(logging.Component(logger, "calcom")),
	)
	voiceClient := elevenlabs.NewClient(cfg.ElevenLabs.BaseURL, cfg.ElevenLabs.APIKey,
		upstream.WithHTTPClient(httpClient),
		upstream.WithObserver(monitor),
		upstream.WithLogger(logging.Component(logger, "elevenlabs")),
	)

	scheduling := calcom.NewAdapter(calClient,
		calcom.WithLanguage(cfg.CalCom.Language),
		calcom.WithEventTypeTTL(cfg.CalCom.EventTypeTTL),
		calcom.WithLogger(logging.Component(logger, "calcom")),
	)
	voice := elevenlabs.NewAdapter(voiceClient,
		elevenlabs.WithDefaultModel(cfg.ElevenLabs.DefaultModel),
		elevenlabs.WithLogger(logging.Component(logger, "elevenlabs")),
	)
	dispatcher := mcp.NewDispatcher(scheduling, voice,
		mcp.WithErrorRecorder(monitor),
		mcp.WithLogger(logging.Component(logger, "mcp")),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		logs:       logs,
		sink:       sink,
		monitor:    monitor,
		dispatcher: dispatcher,
		closer:     closer,
	}, nil
}

// Close waits for pending alerts and releases the log file.
func (a *app) Close() error {
	a.monitor.Wait()
	return a.closer.Close()
}
