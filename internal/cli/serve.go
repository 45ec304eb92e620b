package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/renderer"
	"github.com/rcliao/devplan/internal/web"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API and plan pages over HTTP",
		Run:   runServe,
	}

	cmd.Flags().String("host", "", "Listen host (default: server.host)")
	cmd.Flags().IntP("port", "p", 0, "Listen port (default: server.port)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	c := loadConfig()
	if cmd.Flags().Changed("host") {
		c.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		c.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	log := newLogger()
	defer log.Close()

	gw := renderer.NewGateway(c.Renderer.Settings(), log)
	if err := gw.Available(); err != nil {
		log.Warn("diagram engine not found; renders will fail", "command", c.Renderer.Command, "error", err)
	}

	srv := web.NewServer(web.Settings{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  2 * c.Server.ReadTimeout,
		MaxBodyBytes: c.Server.MaxBodyBytes,
	}, newService(s, log), s, openLibrary(), web.WithLogger(log))

	ctx := cmd.Context()
	if err := srv.Start(ctx); err != nil {
		exitErr("serve", err)
	}
	printJSON(map[string]string{"status": "listening", "url": srv.BaseURL()})

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
