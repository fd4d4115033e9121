package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soloftp/soloftp/filesystem"
	"github.com/soloftp/soloftp/ftp"
	"github.com/soloftp/soloftp/metrics"
	"github.com/soloftp/soloftp/sftp"
	"github.com/soloftp/soloftp/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FTP server",
	Long: `Start the single-client FTP server over a local directory.

Examples:
  # Serve the current directory on the default ports
  soloftp serve --root .

  # Custom account and ports, public address for PASV behind NAT
  soloftp serve --root /srv/files --addr :2121 --data-addr :50009 \
    --user alice --pass secret --public-ip 203.0.113.7

  # Discover the public address automatically
  soloftp serve --public-ip auto

  # Also expose the directory over SFTP and export Prometheus metrics
  soloftp serve --sftp-addr :2222 --metrics-addr :9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":21", "control listen address")
	serveCmd.Flags().String("data-addr", fmt.Sprintf(":%d", ftp.DefaultDataPort), "fixed passive data listen address")
	serveCmd.Flags().String("public-ip", "", "IPv4 advertised in PASV replies, or \"auto\" to discover it")
	serveCmd.Flags().String("root", ".", "directory served as the virtual root")
	serveCmd.Flags().String("user", "esp", "account username")
	serveCmd.Flags().String("pass", "esp", "account password")
	serveCmd.Flags().Duration("idle-timeout", ftp.DefaultIdleTimeout, "inactivity window before the client is dropped")
	serveCmd.Flags().Duration("connect-timeout", ftp.DefaultConnectTimeout, "data-connect wait and transfer stall window")
	serveCmd.Flags().String("sftp-addr", "", "SFTP gateway listen address (disabled when empty)")
	serveCmd.Flags().String("sftp-key", "", "SFTP host key file in PEM format (generated when empty)")
	serveCmd.Flags().String("metrics-addr", "", "Prometheus /metrics listen address (disabled when empty)")
	viper.BindPFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	root := viper.GetString("root")
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", root)
	}
	store := filesystem.NewLocalFS(root)

	registry := users.NewLocalUsers()
	registry.Add(viper.GetString("user"), viper.GetString("pass"))

	srv := ftp.NewServer(viper.GetString("addr"), store, registry)
	srv.DataAddr = viper.GetString("data-addr")
	srv.IdleTimeout = viper.GetDuration("idle-timeout")
	srv.ConnectTimeout = viper.GetDuration("connect-timeout")
	srv.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if publicIP := viper.GetString("public-ip"); publicIP != "" {
		if publicIP == "auto" {
			publicIP, err = ftp.GetServerPublicIP(ctx)
			if err != nil {
				return err
			}
			logger.Info("discovered public ip", "ip", publicIP)
		}
		if err := srv.SetPublicServerIPv4(publicIP); err != nil {
			return err
		}
	}

	if metricsAddr := viper.GetString("metrics-addr"); metricsAddr != "" {
		metrics.Init()
		srv.SetMetrics(metrics.NewServerMetrics())
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "addr", metricsAddr)
	}

	if sftpAddr := viper.GetString("sftp-addr"); sftpAddr != "" {
		sftpSrv := sftp.NewServer(sftpAddr, store, registry)
		sftpSrv.SetLogger(logger)
		if keyFile := viper.GetString("sftp-key"); keyFile != "" {
			if err := sftpSrv.SetPrivateKeyFile(keyFile); err != nil {
				return err
			}
		}
		if err := sftpSrv.TryListenAndServe(time.Second); err != nil {
			return fmt.Errorf("sftp server: %w", err)
		}
		defer sftpSrv.Close()
	}

	if err := srv.Listen(); err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Run(ctx)
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stopChan:
		signal.Stop(stopChan)
		logger.Info("shutdown signal received")
		cancel()
		return <-serverDone
	case err := <-serverDone:
		return err
	}
}
