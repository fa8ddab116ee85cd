// Command countsync es el cliente de conteo de una campaña: lee ediciones del operador por stdin
// y las persiste en lotes contra la API.
//
// Formato de entrada, una por línea:
//
//	<itemId>,<cantidad>   edición (cantidad vacía borra el valor)
//	flush                 fuerza el envío de pendientes
//	suspend|resume|cancel transición de la campaña (vacía pendientes antes)
//	validate [sync]       valida la campaña; "sync" ajusta el stock a lo contado
//
// SIGTSTP (la pantalla pasa a segundo plano) fuerza un flush. Los borradores sobreviven a un
// reinicio si REDIS_ADDR está configurado.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jhoicas/inventario-auditoria/pkg/config"
	"github.com/jhoicas/inventario-auditoria/pkg/countbatch"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	campaignID := flag.String("campaign", "", "ID de la campaña (requerido)")
	draftTTL := flag.Duration("draft-ttl", 72*time.Hour, "vigencia de los borradores en Redis")
	flag.Parse()
	if *campaignID == "" {
		fmt.Fprintln(os.Stderr, "uso: countsync -campaign <id> < ediciones")
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		return 1
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "countsync", Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var drafts countbatch.DraftStore = countbatch.NewMemoryDraftStore()
	if cfg.Redis.Addr != "" {
		client, err := countbatch.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error().Err(err).Msg("redis no disponible; borradores solo en memoria")
		} else {
			defer client.Close()
			drafts = countbatch.NewRedisDraftStore(client, *draftTTL)
		}
	}

	writer := countbatch.NewHTTPCountWriter(cfg.Batcher.APIBaseURL, cfg.Batcher.Token)
	batcher := countbatch.New(*campaignID, writer, drafts, countbatch.Config{
		ChunkSize:      cfg.Batcher.ChunkSize,
		RequestTimeout: cfg.Batcher.RequestTimeout,
	}, log)

	if n, err := batcher.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("no se recuperaron borradores")
	} else if n > 0 {
		log.Info().Int("items", n).Msg("borradores recuperados")
	}

	sched, err := countbatch.NewScheduler(ctx, batcher, cfg.Batcher.Interval, log)
	if err != nil {
		log.Error().Err(err).Msg("scheduler de flush")
		return 1
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("detener scheduler")
		}
	}()

	hidden := make(chan os.Signal, 1)
	signal.Notify(hidden, syscall.SIGTSTP)
	defer signal.Stop(hidden)
	go func() {
		for range hidden {
			if err := batcher.Hidden(ctx).Err(); err != nil {
				log.Warn().Err(err).Msg("flush al pasar a segundo plano")
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		readLines(os.Stdin, lines)
	}()

	code := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if err := handleLine(ctx, batcher, writer, line); err != nil {
				log.Error().Err(err).Str("line", line).Msg("comando fallido")
				code = 1
			}
		}
	}

	// Al salir se intenta vaciar lo pendiente; lo que falle queda en los borradores.
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := batcher.Flush(flushCtx).Err(); err != nil {
		log.Warn().Err(err).
			Int("pending", len(batcher.Pending())).
			Int("rejected", len(batcher.Rejected())).
			Msg("quedaron conteos sin enviar")
		return 1
	}
	return code
}

func readLines(r io.Reader, out chan<- string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out <- line
		}
	}
}

func handleLine(ctx context.Context, b *countbatch.Batcher, w *countbatch.HTTPCountWriter, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "flush":
		return b.Flush(ctx).Err()
	case "suspend", "resume", "cancel":
		action := fields[0]
		return b.Transition(ctx, func(ctx context.Context) error {
			return w.Transition(ctx, b.CampaignID(), action)
		})
	case "validate":
		sync := len(fields) > 1 && fields[1] == "sync"
		return b.Transition(ctx, func(ctx context.Context) error {
			return w.Validate(ctx, b.CampaignID(), sync)
		})
	}
	itemID, raw, ok := strings.Cut(line, ",")
	if !ok || strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("línea inválida, se espera <itemId>,<cantidad>")
	}
	return b.RecordEdit(ctx, strings.TrimSpace(itemID), raw)
}
