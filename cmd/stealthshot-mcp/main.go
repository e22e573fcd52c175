package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/stealthshot/models"
)

func main() {
	apiURL := os.Getenv("STEALTHSHOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("STEALTHSHOT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "STEALTHSHOT_API_KEY is required")
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(apiURL, apiKey)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"stealthshot",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	detectTool := mcp.NewTool("detect_block",
		mcp.WithDescription("Decide whether a captured page is an anti-bot block or challenge page (Cloudflare, CAPTCHA, empty or corrupted capture). Paths are resolved on the server host."),
		mcp.WithString("screenshot_path",
			mcp.Description("Path of the screenshot (PNG, JPEG or WebP)"),
		),
		mcp.WithString("html_path",
			mcp.Description("Path of the saved HTML snapshot"),
		),
		mcp.WithString("html",
			mcp.Description("The rendered HTML itself; takes precedence over html_path"),
		),
	)
	s.AddTool(detectTool, handleDetectBlock(apiURL, apiKey))

	captureTool := mcp.NewTool("capture_page",
		mcp.WithDescription("Capture a web page with a stealth browser at desktop, mobile and tablet viewports, retrying blocked captures, and report screenshot paths with a block verdict for each."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to capture"),
		),
		mcp.WithString("viewport",
			mcp.Description("Capture only one viewport (default: all three)"),
			mcp.Enum("desktop", "mobile", "tablet"),
		),
		mcp.WithNumber("max_retries",
			mcp.Description("Extra captures for a blocked viewport (0-5)"),
		),
		mcp.WithBoolean("probe",
			mcp.Description("Run a plain HTTP preflight first"),
		),
		mcp.WithBoolean("extract_content",
			mcp.Description("Include the page's main content as Markdown"),
		),
		mcp.WithBoolean("analyze_styles",
			mcp.Description("Include colors, typography, design tokens and detected frameworks"),
		),
	)
	s.AddTool(captureTool, handleCapturePage(apiURL, apiKey))

	return s
}

// apiPost sends a POST request to the stealthshot API and returns the
// response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleDetectBlock(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.DetectRequest{
			ScreenshotPath: request.GetString("screenshot_path", ""),
			HTMLPath:       request.GetString("html_path", ""),
			HTML:           request.GetString("html", ""),
		}
		if req.ScreenshotPath == "" && req.HTMLPath == "" && req.HTML == "" {
			return mcp.NewToolResultError("provide screenshot_path, html_path or html"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/detect", req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("detect request failed: %v", err)), nil
		}

		var resp models.DetectResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse detect response: %v", err)), nil
		}
		if resp.Verdict == nil {
			return mcp.NewToolResultError(errorText("detect failed", resp.Error)), nil
		}

		var sb strings.Builder
		writeVerdict(&sb, resp.Verdict)
		if p := resp.Page; p != nil {
			writePage(&sb, p)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleCapturePage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{
			"url":             url,
			"probe":           request.GetBool("probe", false),
			"extract_content": request.GetBool("extract_content", false),
			"analyze_styles":  request.GetBool("analyze_styles", false),
		}
		if vp := request.GetString("viewport", ""); vp != "" {
			payload["viewport"] = vp
		}
		if n := request.GetInt("max_retries", -1); n >= 0 {
			payload["max_retries"] = n
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/capture", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("capture request failed: %v", err)), nil
		}

		var resp models.CaptureResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse capture response: %v", err)), nil
		}
		if !resp.Success || resp.Report == nil {
			return mcp.NewToolResultError(errorText("capture failed", resp.Error)), nil
		}

		return mcp.NewToolResultText(formatReport(resp.Report)), nil
	}
}

func errorText(fallback string, e *models.ErrorDetail) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func writeVerdict(sb *strings.Builder, v *models.Verdict) {
	if v.Blocked() {
		sb.WriteString("Blocked: yes\n")
	} else {
		sb.WriteString("Blocked: no\n")
	}
	var flags []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"cloudflare", v.Cloudflare},
		{"captcha", v.Captcha},
		{"empty", v.Empty},
		{"corrupted", v.Corrupted},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	if len(flags) > 0 {
		fmt.Fprintf(sb, "Indicators: %s\n", strings.Join(flags, ", "))
	}
	for _, r := range v.Reasons {
		fmt.Fprintf(sb, "- %s\n", r)
	}
}

func writePage(sb *strings.Builder, p *models.PageInfo) {
	if p.Title != "" {
		fmt.Fprintf(sb, "Title: %s\n", p.Title)
	}
	fmt.Fprintf(sb, "Visible text: %d chars\n", p.TextLength)
	if len(p.ChallengeWidgets) > 0 {
		fmt.Fprintf(sb, "Challenge widgets: %s\n", strings.Join(p.ChallengeWidgets, ", "))
	}
}

func writeStyles(sb *strings.Builder, s *models.StyleReport) {
	if len(s.Colors) > 0 {
		fmt.Fprintf(sb, "Colors: %s\n", strings.Join(s.Colors, "; "))
	}
	for _, f := range s.Typography {
		fmt.Fprintf(sb, "Font %s: %s %s/%s weight %s\n", f.Tag, f.Family, f.Size, f.LineHeight, f.Weight)
	}
	if len(s.Technologies) > 0 {
		fmt.Fprintf(sb, "Technologies: %s\n", strings.Join(s.Technologies, ", "))
	}
	if len(s.Spacing) > 0 {
		fmt.Fprintf(sb, "Spacing: %s\n", strings.Join(s.Spacing, ", "))
	}
	if s.CustomPropertyCount > 0 {
		fmt.Fprintf(sb, "Design tokens: %d\n", s.CustomPropertyCount)
	}
}

func formatReport(r *models.ResearchReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", r.URL)
	fmt.Fprintf(&sb, "All captures succeeded: %v\nAny blocked: %v\n", r.AllSucceeded, r.AnyBlocked)

	if p := r.Probe; p != nil {
		sb.WriteString("\n## Probe\n")
		if p.Success {
			fmt.Fprintf(&sb, "HTTP %d %s\n", p.StatusCode, p.FinalURL)
			if p.Title != "" {
				fmt.Fprintf(&sb, "Title: %s\n", p.Title)
			}
			writeVerdict(&sb, p.Verdict)
		} else {
			sb.WriteString(errorText("probe failed", p.Error) + "\n")
		}
	}

	for i := range r.Viewports {
		vr := &r.Viewports[i]
		fmt.Fprintf(&sb, "\n## %s (%d attempts)\n", vr.Viewport.String(), len(vr.Attempts))
		last := vr.Last()
		if last == nil {
			continue
		}
		if !last.Capture.Success {
			fmt.Fprintf(&sb, "Capture failed: %s\n", last.Capture.Error)
			continue
		}
		fmt.Fprintf(&sb, "Screenshot: %s\nHTML: %s\n", last.Capture.ScreenshotPath, last.Capture.HTMLPath)
		if last.Verdict != nil {
			writeVerdict(&sb, last.Verdict)
		}
		if last.Capture.Styles != nil {
			writeStyles(&sb, last.Capture.Styles)
		}
	}

	if c := r.Content; c != nil {
		sb.WriteString("\n---\n")
		if !c.MainContent {
			sb.WriteString("(no main content block found; whole page converted)\n\n")
		}
		sb.WriteString(c.Markdown)
	}
	return sb.String()
}
