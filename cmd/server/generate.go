package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
	"github.com/sj-versent/demo-aws-summit-2025/internal/progress"
)

func newGenerateCmd() *cobra.Command {
	var (
		serverURL string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate an image through a running server, following its progress stream",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			}
			return generate(cmd, serverURL, prompt, out)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "server base URL")
	cmd.Flags().StringVarP(&out, "out", "o", "image.png", "where to write the PNG")
	return cmd
}

func generate(cmd *cobra.Command, serverURL, prompt, out string) error {
	u, err := url.Parse(strings.TrimRight(serverURL, "/") + "/api/generate/progress")
	if err != nil {
		return fmt.Errorf("invalid --server: %w", err)
	}
	if prompt != "" {
		u.RawQuery = url.Values{"prompt": {prompt}}.Encode()
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	stdout := cmd.OutOrStdout()
	final, err := progress.Read(resp.Body, func(s generation.Status) {
		if s.Phase != generation.PhaseReady {
			fmt.Fprintln(stdout, s.Label())
		}
	})
	if err != nil && !errors.Is(err, progress.ErrConnectionLost) {
		return err
	}
	if final.Phase != generation.PhaseReady {
		return errors.New(final.Message)
	}

	png, err := base64.StdEncoding.DecodeString(final.Image)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %s\n", generation.LabelReady, out)
	return nil
}
