package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitrina-app/vitrina/internal/domain/guard"
)

var (
	apiData    string
	apiHeaders []string
	apiInclude bool
)

var apiCmd = &cobra.Command{
	Use:   "api <METHOD> <path>",
	Short: "Send an authorized request to the backend",
	Long: `Send a request to the backend API with the stored session's access
token as a Bearer credential, and print the response body. An explicit
Authorization header passed with --header is sent unchanged.

Examples:
  vitrina api GET /api/products/
  vitrina api POST /api/favorites/ --data '{"product": 12}'
  vitrina api POST /api/favorites/ --data @favorite.json`,
	Args: cobra.ExactArgs(2),
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringVarP(&apiData, "data", "d", "", "request body, or @file to read it from a file")
	apiCmd.Flags().StringArrayVarP(&apiHeaders, "header", "H", nil, "extra header as 'Name: value' (repeatable)")
	apiCmd.Flags().BoolVarP(&apiInclude, "include", "i", false, "print the status line and response headers")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path := args[1]
	if !guard.IsRelativePath(path) {
		return fmt.Errorf("%q is not an API path", path)
	}

	body, err := apiBody(apiData)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	req, err := http.NewRequestWithContext(cmd.Context(), method, a.client.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if apiData != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for _, h := range apiHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := a.client.HTTPClient().Do(req)
	if err != nil {
		return a.describeError(err)
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	if apiInclude {
		fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
		_ = resp.Header.Write(out)
		fmt.Fprintln(out)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend answered %s", resp.Status)
	}
	return nil
}

func apiBody(data string) (io.Reader, error) {
	switch {
	case data == "":
		return nil, nil
	case strings.HasPrefix(data, "@"):
		f, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return bytes.NewReader(f), nil
	default:
		return strings.NewReader(data), nil
	}
}
