// Package pdf reads scanned PDF documents: their embedded page images and
// any typed text layer.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/lipi/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Credentials unlock password protected documents.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Image is one embedded raster in its original encoding.
type Image struct {
	Name string
	Data []byte
}

// Page groups the images found on one page.
type Page struct {
	Number int
	Images []Image
}

func configuration(creds *Credentials) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if creds != nil {
		conf.UserPW = creds.UserPassword
		conf.OwnerPW = creds.OwnerPassword
	}
	return conf
}

// PageCount returns the number of pages in filename.
func PageCount(filename string, creds *Credentials) (int, error) {
	n, err := api.PageCountFile(filename)
	if err == nil || creds == nil {
		return n, err
	}
	f, openErr := os.Open(filename) //nolint:gosec // G304: reading user-provided PDF file path is expected
	if openErr != nil {
		return 0, openErr
	}
	defer func() { _ = f.Close() }()
	return api.PageCount(f, configuration(creds))
}

// ExtractPages extracts the supported images of the pages in pageRange
// ("" means all pages). Pages come back in ascending order.
func ExtractPages(filename, pageRange string, creds *Credentials) ([]Page, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("%w: page range %q: %w", ErrInvalid, pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "lipi-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(filename, tempDir, selected, configuration(creds)); err != nil {
		if IsPasswordError(err) {
			return nil, fmt.Errorf("%w: %w", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: extract images: %w", ErrInvalid, err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return collectExtractedImages(tempDir, base)
}

// ErrInvalid reports an unreadable document or a bad page selection.
var ErrInvalid = errors.New("invalid pdf")

// ErrEncrypted reports a document that could not be opened with the given
// credentials.
var ErrEncrypted = errors.New("pdf is encrypted")

// IsPasswordError checks if an error is related to password/encryption issues.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEncrypted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// collectExtractedImages groups the files written by pdfcpu by page. Files
// are named <base>_<page>[_<name>].<ext>.
func collectExtractedImages(dir, base string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	byPage := make(map[int][]Image)
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		pageNum, err := parsePageFromFilename(base, e.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name())) //nolint:gosec // G304: files created by us
		if err != nil || len(data) == 0 {
			continue
		}
		byPage[pageNum] = append(byPage[pageNum], Image{Name: e.Name(), Data: data})
	}

	pages := make([]Page, 0, len(byPage))
	for n, imgs := range byPage {
		sort.Slice(imgs, func(i, j int) bool { return imgs[i].Name < imgs[j].Name })
		pages = append(pages, Page{Number: n, Images: imgs})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

func parsePageFromFilename(base, filename string) (int, error) {
	rest, ok := strings.CutPrefix(filename, base+"_")
	if !ok {
		return 0, errors.New("not a page file")
	}
	rest = strings.TrimSuffix(rest, filepath.Ext(rest))
	digits, _, _ := strings.Cut(rest, "_")
	pageNum, err := strconv.Atoi(digits)
	if err != nil || pageNum < 0 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if from, to, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", from)
		}
		end, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", to)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
