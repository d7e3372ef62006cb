package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/crawler"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// Output file names inside the report directory.
const (
	// CoreDirName is the subdirectory holding retained script bodies.
	CoreDirName = "core_js"

	// CoreListFile lists retained scripts as "filename<TAB>url" lines.
	CoreListFile = "core_js_list.txt"

	// CoreJSONFile records retained scripts with status, size, and hash.
	CoreJSONFile = "core_js_urls.json"
)

// PersistResult describes what SaveCoreScripts wrote.
type PersistResult struct {
	// CoreScripts are the retained scripts, in persistence order.
	CoreScripts []*model.CoreScript

	// ListPath is the path of the written core_js_list.txt.
	ListPath string

	// JSONPath is the path of the written core_js_urls.json.
	JSONPath string
}

// SaveCoreScripts downloads every core_app asset into outDir/core_js and
// writes the accompanying list files. Assets whose download fails are
// skipped, not fatal: a missing script should not abort the scan.
//
// Bodies are re-downloaded rather than reusing the classification-time
// sample, which only covered the head and tail of the file.
func SaveCoreScripts(ctx context.Context, fetcher *crawler.Fetcher, outDir string, assets []*model.ScriptAsset, classifications []*model.Classification, logger *slog.Logger) (*PersistResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	coreDir := filepath.Join(outDir, CoreDirName)
	if err := os.MkdirAll(coreDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", coreDir, err)
	}

	byKey := make(map[[2]string]*model.ScriptAsset, len(assets))
	for _, a := range assets {
		byKey[[2]string{a.FinalURL, a.Filename}] = a
	}

	result := &PersistResult{
		CoreScripts: make([]*model.CoreScript, 0),
		ListPath:    filepath.Join(outDir, CoreListFile),
		JSONPath:    filepath.Join(outDir, CoreJSONFile),
	}

	for _, item := range classifications {
		if !item.IsCore() {
			continue
		}

		asset := byKey[[2]string{item.FinalURL, item.Filename}]
		if asset == nil {
			// The model sometimes rewrites URLs; retry on filename alone.
			asset = findByFilename(assets, item.Filename)
		}
		if asset == nil {
			logger.Warn("core script not found among assets", "filename", item.Filename)
			continue
		}

		fetched, body, err := fetcher.Fetch(ctx, asset.FinalURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to download core script", "url", asset.FinalURL, "error", err)
			continue
		}
		if len(body) == 0 {
			continue
		}

		name := asset.Filename
		if name == "" {
			name = "core.js"
		}
		dst := uniquePath(filepath.Join(coreDir, name))
		if err := os.WriteFile(dst, body, 0600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", dst, err)
		}

		result.CoreScripts = append(result.CoreScripts, &model.CoreScript{
			Filename:  filepath.Base(dst),
			SourceURL: asset.FinalURL,
			Status:    fetched.HTTPStatus,
			SizeBytes: len(body),
			SHA1:      model.HashText(string(body)),
		})
	}

	if err := writeListFiles(result); err != nil {
		return nil, err
	}

	logger.Info("saved core scripts",
		"count", len(result.CoreScripts),
		"dir", coreDir)

	return result, nil
}

// findByFilename returns the first non-inline asset with the filename.
func findByFilename(assets []*model.ScriptAsset, filename string) *model.ScriptAsset {
	if filename == "" {
		return nil
	}
	for _, a := range assets {
		if !a.Inline && a.Filename == filename {
			return a
		}
	}
	return nil
}

// uniquePath avoids filename collisions by appending _1, _2, ... before
// the extension.
func uniquePath(dst string) string {
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return dst
	}

	ext := filepath.Ext(dst)
	if ext == "" {
		ext = ".js"
	}
	base := strings.TrimSuffix(dst, filepath.Ext(dst))

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// writeListFiles writes core_js_list.txt and core_js_urls.json.
func writeListFiles(result *PersistResult) error {
	var sb strings.Builder
	for _, cs := range result.CoreScripts {
		sb.WriteString(cs.Filename)
		sb.WriteByte('\t')
		sb.WriteString(cs.SourceURL)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(result.ListPath, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", result.ListPath, err)
	}

	data, err := json.MarshalIndent(result.CoreScripts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal core script list: %w", err)
	}
	if err := os.WriteFile(result.JSONPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", result.JSONPath, err)
	}

	return nil
}
