package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	fcolor "github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	Server  string
	EventID string
	HostID  string
	Images  int
	Workers int
}

type seedResult struct {
	ID      string
	Success bool
	Error   error
}

var seedNames = []string{"Ana", "Leo", "Mia", "Noah", "Zoe", "Ivan", "Sara"}

func seedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo event on a running server and fill it with generated photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts)
		},
	}
	cmd.Flags().StringVar(&opts.Server, "server", "http://localhost:3001", "Base URL of a running snapify server")
	cmd.Flags().StringVar(&opts.EventID, "event", "demo", "Event id to create (reused when it already exists)")
	cmd.Flags().StringVar(&opts.HostID, "host", "demo-host", "Host id owning the event")
	cmd.Flags().IntVarP(&opts.Images, "images", "n", 30, "Number of photos to upload")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 4, "Concurrent uploads")
	return cmd
}

func runSeed(opts seedOptions) error {
	if opts.Images <= 0 || opts.Workers <= 0 {
		return fmt.Errorf("--images and --workers must be positive")
	}
	opts.Server = strings.TrimRight(opts.Server, "/")

	pterm.DefaultHeader.WithFullWidth().WithBackgroundStyle(pterm.NewStyle(pterm.BgLightMagenta)).WithTextStyle(pterm.NewStyle(pterm.FgBlack)).Println("SNAPIFY DEMO SEEDER")
	pterm.Println()

	data := pterm.TableData{
		{"Target Server", fcolor.New(fcolor.FgCyan).Sprint(opts.Server)},
		{"Event", fcolor.New(fcolor.FgCyan).Sprint(opts.EventID)},
		{"Total Photos", fcolor.New(fcolor.FgYellow).Sprintf("%d images", opts.Images)},
		{"Concurrency", fcolor.New(fcolor.FgYellow).Sprintf("%d workers", opts.Workers)},
	}
	_ = pterm.DefaultTable.WithBoxed().WithData(data).Render()
	pterm.Println()

	client := &http.Client{Timeout: 30 * time.Second}
	if err := ensureEvent(client, opts); err != nil {
		return err
	}

	bar, _ := pterm.DefaultProgressbar.
		WithTotal(opts.Images).
		WithTitle("Uploading photos...").
		WithShowCount(true).
		WithShowElapsedTime(true).
		Start()

	var wg sync.WaitGroup
	jobs := make(chan int, opts.Images)
	results := make(chan seedResult, opts.Images)

	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- seedOne(client, opts, j)
				bar.Increment()
			}
		}()
	}
	for i := 0; i < opts.Images; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)
	_, _ = bar.Stop()

	var failures []seedResult
	for res := range results {
		if !res.Success {
			failures = append(failures, res)
		}
	}

	pterm.Println()
	if len(failures) == 0 {
		pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgGreen)).Println("SEEDING COMPLETED SUCCESSFULLY")
		pterm.Info.Printf("Uploaded %d photos to %s/api/events/%s\n", opts.Images, opts.Server, opts.EventID)
		return nil
	}

	pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgYellow)).Println("COMPLETED WITH ERRORS")
	pterm.Info.Printf("Success: %d | Failed: %d\n", opts.Images-len(failures), len(failures))
	pterm.Println()
	pterm.Error.Println("Failure Report:")
	for _, f := range failures {
		fmt.Printf(" • %s: %v\n", fcolor.RedString(f.ID), f.Error)
	}
	return fmt.Errorf("%d upload(s) failed", len(failures))
}

func ensureEvent(client *http.Client, opts seedOptions) error {
	body, _ := json.Marshal(map[string]string{
		"id":     opts.EventID,
		"hostId": opts.HostID,
		"title":  "Demo Celebration",
		"date":   time.Now().Format("2006-01-02"),
	})
	resp, err := client.Post(opts.Server+"/api/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		pterm.Success.Printf("Created event %s\n", opts.EventID)
	case http.StatusConflict:
		pterm.Info.Printf("Event %s already exists, adding to it\n", opts.EventID)
	default:
		return fmt.Errorf("create event: server answered %d", resp.StatusCode)
	}
	return nil
}

func seedOne(client *http.Client, opts seedOptions, n int) seedResult {
	id := uuid.NewString()
	img, err := demoPhoto(n)
	if err != nil {
		return seedResult{ID: id, Error: err}
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", fmt.Sprintf("seed-%d.jpg", n))
	if err != nil {
		return seedResult{ID: id, Error: err}
	}
	_, _ = part.Write(img)
	_ = mw.WriteField("id", id)
	_ = mw.WriteField("eventId", opts.EventID)
	_ = mw.WriteField("type", "image")
	_ = mw.WriteField("caption", "Captured moment")
	_ = mw.WriteField("uploaderName", seedNames[rand.Intn(len(seedNames))])
	_ = mw.WriteField("uploadedAt", time.Now().UTC().Format(time.RFC3339))
	_ = mw.Close()

	resp, err := client.Post(opts.Server+"/api/media", mw.FormDataContentType(), body)
	if err != nil {
		return seedResult{ID: id, Error: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return seedResult{ID: id, Error: fmt.Errorf("server rejected: %d", resp.StatusCode)}
	}
	return seedResult{ID: id, Success: true}
}

// demoPhoto renders a gradient-ish placeholder so every upload is distinct.
func demoPhoto(n int) ([]byte, error) {
	base := color.NRGBA{R: uint8(rand.Intn(256)), G: uint8(rand.Intn(256)), B: uint8(rand.Intn(256)), A: 255}
	img := imaging.New(800, 600, base)
	accent := imaging.New(400, 300, color.NRGBA{R: 255 - base.R, G: 255 - base.G, B: uint8(n * 37 % 256), A: 255})
	img = imaging.Overlay(img, accent, image.Pt(rand.Intn(400), rand.Intn(300)), 0.6)
	img = imaging.Blur(img, 12)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
