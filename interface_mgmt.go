package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	gorillamux "github.com/gorilla/mux"
	"github.com/shimmeringbee/irrigation/config"
	"github.com/shimmeringbee/irrigation/interface/http/pprof"
	"github.com/shimmeringbee/irrigation/interface/http/v1"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/radio/homekit"
	"github.com/shimmeringbee/irrigation/radio/mqtt"
	"github.com/shimmeringbee/irrigation/watchdog"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"net/http"
	url2 "net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

type StartedInterface struct {
	Name     string
	Shutdown func() error
}

const DefaultMQTTEventDuration = 1 * time.Second
const DefaultMQTTConnectTimeout = 30 * time.Second
const DefaultRadioStartWindow = 2 * time.Minute

// radioContext carries what every radio interface needs to present the zones.
type radioContext struct {
	zones       []homekit.ZoneInfo
	name        string
	directories Directories
	watchdog    *watchdog.Watchdog
}

func interfaceLogger(cfg config.InterfaceConfig, l logwrap.Logger) logwrap.Logger {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Datum("interface", cfg.Name), logwrap.Source(cfg.Type))
	return wl
}

func interfaceDataDirectory(directories Directories, name string) (string, error) {
	dataDir := directories.InterfaceData(name)

	if err := os.MkdirAll(dataDir, DefaultDirectoryPermissions); err != nil {
		return "", fmt.Errorf("failed to create interface data directory '%s': %w", dataDir, err)
	}

	return dataDir, nil
}

// startRadioInterfaces starts every configured radio, returning the networks for the bridge.
// Joining a network may block, so the watchdog is suspended for the duration.
func startRadioInterfaces(cfgs []config.InterfaceConfig, rc radioContext, l logwrap.Logger) ([]radio.Network, []StartedInterface, error) {
	var networks []radio.Network
	var started []StartedInterface

	rc.watchdog.Suspend(DefaultRadioStartWindow)
	defer rc.watchdog.Resume()

	for _, cfg := range cfgs {
		if _, isHTTP := cfg.Config.(*config.HTTPInterfaceConfig); isHTTP {
			continue
		}

		var network radio.Network
		var shutdown func() error

		dataDir, err := interfaceDataDirectory(rc.directories, cfg.Name)
		if err != nil {
			return nil, started, err
		}

		wl := interfaceLogger(cfg, l)

		switch iCfg := cfg.Config.(type) {
		case *config.MQTTInterfaceConfig:
			network, shutdown, err = startMQTTInterface(*iCfg, rc, dataDir, wl)
		case *config.HomeKitInterfaceConfig:
			network, shutdown, err = startHomeKitInterface(*iCfg, rc, dataDir, wl)
		default:
			return nil, started, fmt.Errorf("unknown interface type loaded: %s", cfg.Type)
		}

		if err != nil {
			return nil, started, fmt.Errorf("failed to start interface '%s': %w", cfg.Name, err)
		}

		networks = append(networks, network)
		started = append(started, StartedInterface{Name: cfg.Name, Shutdown: shutdown})
	}

	if len(networks) == 0 {
		return nil, started, radio.ErrNoNetworks
	}

	return networks, started, nil
}

func startHTTPInterfaces(cfgs []config.InterfaceConfig, provider v1.SnapshotProvider, l logwrap.Logger) ([]StartedInterface, error) {
	var started []StartedInterface

	for _, cfg := range cfgs {
		iCfg, ok := cfg.Config.(*config.HTTPInterfaceConfig)
		if !ok {
			continue
		}

		shutdown, err := startHTTPInterface(*iCfg, provider, interfaceLogger(cfg, l))
		if err != nil {
			return started, fmt.Errorf("failed to start interface '%s': %w", cfg.Name, err)
		}

		started = append(started, StartedInterface{Name: cfg.Name, Shutdown: shutdown})
	}

	return started, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

func constructHTTPRouter(cfg config.HTTPInterfaceConfig, provider v1.SnapshotProvider, l logwrap.Logger) http.Handler {
	r := gorillamux.NewRouter()

	if containsString(cfg.EnabledAPIs, "v1") {
		l.LogInfo(context.Background(), "Mounting v1 API endpoint on /api/v1.")
		r.PathPrefix("/api/v1").Handler(http.StripPrefix("/api/v1", v1.ConstructRouter(provider)))
	}

	if containsString(cfg.EnabledAPIs, "pprof") {
		l.LogInfo(context.Background(), "Mounting pprof endpoint on /debug/pprof.")
		r.PathPrefix("/debug/pprof").Handler(http.StripPrefix("/debug/pprof", pprof.ConstructRouter()))
	}

	return r
}

func startHTTPInterface(cfg config.HTTPInterfaceConfig, provider v1.SnapshotProvider, l logwrap.Logger) (func() error, error) {
	bindAddress := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: bindAddress, Handler: constructHTTPRouter(cfg, provider, l), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.LogError(context.Background(), "Failed to start http server.", logwrap.Err(err))
		}
	}()

	return func() error {
		return srv.Shutdown(context.Background())
	}, nil
}

func startHomeKitInterface(cfg config.HomeKitInterfaceConfig, rc radioContext, dataDir string, l logwrap.Logger) (radio.Network, func() error, error) {
	serial, err := loadIdentity(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load homekit identity: %w", err)
	}

	n := homekit.New(homekit.Config{
		Name:        rc.name,
		Pin:         cfg.Pin,
		Port:        cfg.Port,
		StoragePath: filepath.Join(dataDir, "pairing"),
		Serial:      serial,
	}, rc.zones, l)

	if err := n.Start(context.Background()); err != nil {
		return nil, nil, err
	}

	return n, n.Stop, nil
}

func awaitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return context.DeadlineExceeded
	}
}

func startMQTTInterface(cfg config.MQTTInterfaceConfig, rc radioContext, dataDir string, l logwrap.Logger) (radio.Network, func() error, error) {
	clientId, err := loadIdentity(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load mqtt client identity: %w", err)
	}

	l.LogInfo(context.Background(), "Constructing new MQTT client.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

	clientOptions := pahomqtt.NewClientOptions()
	clientOptions.ClientID = clientId
	clientOptions.SetAutoReconnect(true)

	if url, err := url2.Parse(cfg.Server); err != nil {
		l.LogError(context.Background(), "Failed to parse MQTT server URL.", logwrap.Err(err))
		return nil, nil, err
	} else {
		clientOptions.Servers = []*url2.URL{url}
	}

	n := mqtt.New(len(rc.zones), filepath.Join(dataDir, IdentityFilename), l)

	lastWillTopic := prefixTopic(cfg.TopicPrefix, mqtt.AvailabilityTopic)

	clientOptions.OnConnect = func(client pahomqtt.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
		defer cancel()

		l.LogInfo(ctx, "MQTT client successfully connected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

		subTopic := prefixTopic(cfg.TopicPrefix, "zones/+/set")
		subscribeToken := client.Subscribe(subTopic, cfg.QOS, func(client pahomqtt.Client, message pahomqtt.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
			defer cancel()

			if err := n.IncomingMessage(ctx, stripPrefixTopic(cfg.TopicPrefix, message.Topic()), message.Payload()); err != nil {
				l.LogError(ctx, "Failed to handle incoming message.", logwrap.Datum("topic", message.Topic()), logwrap.Err(err))
			}
		})

		if err := awaitToken(ctx, subscribeToken); err != nil {
			l.LogError(ctx, "Failed to subscribe to topic in MQTT.", logwrap.Datum("topic", subTopic), logwrap.Err(err))
		}

		connectCtx, connectCancel := context.WithTimeout(context.Background(), DefaultMQTTConnectTimeout)
		defer connectCancel()

		if err := n.Connect(connectCtx, func(ctx context.Context, topic string, payload []byte) error {
			ctx, cancel := context.WithTimeout(ctx, DefaultMQTTEventDuration)
			defer cancel()

			prefixedTopic := prefixTopic(cfg.TopicPrefix, topic)

			token := client.Publish(prefixedTopic, cfg.QOS, cfg.Retained, payload)
			if err := awaitToken(ctx, token); err != nil {
				l.LogError(ctx, "Failed to publish message to MQTT.", logwrap.Datum("topic", prefixedTopic), logwrap.Err(err))
				return err
			}

			return nil
		}); err != nil {
			l.LogError(connectCtx, "Failed to execute connection handler in MQTT interface.", logwrap.Err(err))
		}
	}

	clientOptions.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		l.LogWarn(context.Background(), "MQTT client disconnected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(err))
		n.Disconnect()
	})

	clientOptions.SetWill(lastWillTopic, `false`, cfg.QOS, true)

	if cfg.Credentials != nil {
		clientOptions.SetUsername(cfg.Credentials.Username)
		clientOptions.SetPassword(cfg.Credentials.Password)
	}

	if cfg.TLS != nil {
		tlsConfig, err := constructTLSConfig(*cfg.TLS, l)
		if err != nil {
			return nil, nil, err
		}

		clientOptions.SetTLSConfig(tlsConfig)
	}

	client := pahomqtt.NewClient(clientOptions)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTConnectTimeout)
	defer cancel()

	if err := awaitToken(ctx, client.Connect()); err != nil {
		return nil, nil, fmt.Errorf("failed initial connection to mqtt server '%s': %w", cfg.Server, err)
	}

	l.LogInfo(ctx, "Initial MQTT connection call completed.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

	return n, func() error {
		n.Disconnect()
		client.Disconnect(1500)
		return nil
	}, nil
}

func constructTLSConfig(cfg config.MQTTTLS, l logwrap.Logger) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.SkipCertificateVerification}

	if cfg.SkipCertificateVerification {
		l.LogWarn(context.Background(), "Set to ignore remote TLS certificate, this is considered insecure.")
	}

	if len(cfg.Cert) > 0 {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate/key for mqtt: %w", err)
		}

		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	var certPool *x509.CertPool
	var err error

	if cfg.IgnoreSystemRootCertificates {
		l.LogInfo(context.Background(), "Configured to ignore system root certificates, ensure you are providing your own.")
		certPool = x509.NewCertPool()
	} else {
		certPool, err = x509.SystemCertPool()
		if err != nil {
			if runtime.GOOS == "windows" {
				l.LogWarn(context.Background(), "Failed to load system certificate pool for root CAs, you must provide the CA root certificate for your servers trust chain.", logwrap.Err(err))
				certPool = x509.NewCertPool()
			} else {
				return nil, fmt.Errorf("failed to load system certificate pool: %w", err)
			}
		}
	}

	if len(cfg.CACert) > 0 {
		caCerts, err := os.ReadFile(filepath.Clean(cfg.CACert))
		if err != nil {
			return nil, fmt.Errorf("failed to load CA TLS certificates for mqtt: %w", err)
		}

		if !certPool.AppendCertsFromPEM(caCerts) {
			return nil, fmt.Errorf("no certificates found in CA file '%s'", cfg.CACert)
		}
	}

	tlsConfig.RootCAs = certPool

	return tlsConfig, nil
}

func prefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(topicPrefix, "/"), topic)
	}

	return topic
}

func stripPrefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		prefix := strings.TrimSuffix(topicPrefix, "/") + "/"

		if strings.HasPrefix(topic, prefix) {
			return topic[len(prefix):]
		}
	}

	return topic
}
