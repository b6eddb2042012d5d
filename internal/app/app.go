package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/interviewdeck/clip-recorder/internal"
	"github.com/interviewdeck/clip-recorder/internal/admin"
	"github.com/interviewdeck/clip-recorder/internal/appstats"
	"github.com/interviewdeck/clip-recorder/internal/blob"
	"github.com/interviewdeck/clip-recorder/internal/capture"
	"github.com/interviewdeck/clip-recorder/internal/config"
	"github.com/interviewdeck/clip-recorder/internal/pubsub"
	"github.com/interviewdeck/clip-recorder/internal/recorder"
	"github.com/interviewdeck/clip-recorder/internal/server"
	"github.com/interviewdeck/clip-recorder/internal/session"
	"github.com/interviewdeck/clip-recorder/internal/store"
	"github.com/interviewdeck/clip-recorder/internal/upload"
)

var (
	app config.App

	flags struct {
		config  string
		dump    string
		debug   bool
		help    bool
		version bool
	}

	cfg *config.Config
	ps  pubsub.PubSub
	st  *store.MongoStore
)

func Main() {
	app.Name = internal.AppName
	app.Version = internal.AppVersion
	app.LongName = fmt.Sprintf("%s %s", app.Name, app.Version)
	app.InstanceId = uuid.New().String()

	flag.StringVarP(&flags.config, "config", "c", flags.config, "load configuration file")
	flag.StringVar(&flags.dump, "dump", "", "print config value (e.g. 'pubsub.adapter')")
	flag.BoolVarP(&flags.debug, "debug", "d", flags.debug, "enable debug log")
	flag.BoolVarP(&flags.help, "help", "h", flags.help, "print help")
	flag.BoolVarP(&flags.version, "version", "v", flags.version, "print version")
	flag.Parse()

	if flags.help {
		fmt.Printf("%s\n\n", app.LongName)
		flag.PrintDefaults()
		shutdown(0)
	}

	if flags.version {
		fmt.Println(app.LongName)
		shutdown(0)
	}

	if flags.dump != "" {
		log.SetLevel(log.FatalLevel)
		cfg = initConfig()
		loadConfig()
		dumpConfig()
	}

	Init()
	Run()

	select {}
}

func Init() {
	cfg = initConfig()
	log.Infof("Starting %s PID: %d", app.Name, os.Getpid())
	loadConfig()
	configureLog()
	sigintHandler()
	sighupHandler()
}

func Run() {
	ctx := context.Background()

	appstats.Init()

	if cfg.Prometheus.Enable {
		appstats.ServePromMetrics(cfg.Prometheus)
	}

	ps = pubsub.NewPubSub(cfg.PubSub)

	if err := ps.Check(); err != nil {
		log.Fatalf("failed to connect to pubsub: %v", err)
	}

	var err error
	if st, err = store.NewMongoStore(ctx, cfg.Store); err != nil {
		log.Fatalf("failed to connect to clip store: %v", err)
	}

	uploader := upload.NewUploader(cfg.Upload)

	blobs := blob.NewRegistry()
	preview := server.NewPreviewSink(blobs)
	device := capture.NewDeviceSession(
		capture.NewMediaDevicesProvider(),
		capture.StreamConstraints{
			IdealWidth:  cfg.Capture.Width,
			IdealHeight: cfg.Capture.Height,
			Audio:       cfg.Capture.Audio,
		})
	enc := recorder.NewWebmEncoder(cfg.Capture.Width, cfg.Capture.Height)
	ctrl := session.NewController(device, enc, blobs, preview).
		WithMimeType(cfg.Recorder.MimeType)
	coord := upload.NewCoordinator(uploader, st)

	index := admin.NewIndex()
	if err := index.Rebuild(ctx, st); err != nil {
		log.Warnf("admin index rebuild failed: %v", err)
	}
	index.Watch(ctx, st)

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("failed to notify readiness to systemd: %v", err)
	}

	if cfg.HTTP.Enable {
		hs := server.NewHTTPServer(cfg, ctrl, preview, index, admin.NewService(st, uploader))
		go hs.Serve()
	}

	sv := server.NewServer(cfg, ps, ctrl, coord)

	if cfg.Stats.Enable {
		var fileMode os.FileMode
		if parsedFileMode, err := strconv.ParseUint(cfg.Stats.FileMode, 0, 32); err == nil {
			fileMode = os.FileMode(parsedFileMode)
		} else {
			log.Warnf("Invalid stats file mode %s, using 0600", cfg.Stats.FileMode)
			fileMode = 0600
		}
		sv.WithStatsWriter(appstats.NewStatsFileWriter(cfg.Stats.Directory, fileMode))
	}

	ps.Subscribe(cfg.PubSub.Channels.Subscribe, sv.HandlePubSub, sv.OnStart)
}

func shutdown(code int) {
	if ps != nil {
		if err := ps.Close(); err != nil {
			log.Errorf("failed to close pubsub: %s", err)
		}
	}

	if st != nil {
		if err := st.Close(context.Background()); err != nil {
			log.Errorf("failed to close clip store: %s", err)
		}
	}

	os.Exit(code)
}

func sighupHandler() {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			<-sighup
			log.Debug("reloading config...")
			loadConfig()
			configureLog()
		}
	}()
}

func sigintHandler() {
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	go func() {
		<-sigint
		shutdown(0)
	}()
}
