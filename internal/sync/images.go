package sync

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"vendorsync/internal/db"
	"vendorsync/internal/feed"
)

// LooksLikeImage inspects the leading bytes against known image-format
// signatures: JPEG, PNG and WEBP's RIFF container.
func LooksLikeImage(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	return bytes.HasPrefix(b, []byte{0xff, 0xd8}) ||
		bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) ||
		bytes.HasPrefix(b, []byte("RIFF"))
}

var reNumberedURL = regexp.MustCompile(`(?i)^(.+?)([-_])?(\d{1,2})?\.(jpg|jpeg|png|webp)$`)

// DeriveNumberedURLs builds the gallery candidates implied by a numbered
// main URL: "sku-1.jpg" yields "sku-2.jpg" ... up to maxImages, preserving
// the separator and extension. URLs without a recognizable image extension
// fall back to appending "_<n>" before the extension.
func DeriveNumberedURLs(mainURL string, maxImages int) []string {
	mainURL = strings.TrimSpace(mainURL)
	if mainURL == "" {
		return nil
	}

	m := reNumberedURL.FindStringSubmatch(mainURL)
	if m == nil {
		dot := strings.LastIndex(mainURL, ".")
		if dot < 0 {
			return nil
		}
		base, ext := mainURL[:dot], mainURL[dot+1:]
		var out []string
		for i := 2; i <= maxImages; i++ {
			out = append(out, fmt.Sprintf("%s_%d.%s", base, i, ext))
		}
		return out
	}

	base, sep, num, ext := m[1], m[2], m[3], m[4]
	if sep == "" {
		sep = "_"
	}
	start := 2
	if num != "" {
		n := 0
		fmt.Sscanf(num, "%d", &n)
		if n >= 1 {
			start = n + 1
		}
	}
	var out []string
	for i := start; i <= maxImages; i++ {
		out = append(out, fmt.Sprintf("%s%s%d.%s", base, sep, i, ext))
	}
	return out
}

// CandidateURLs expands a picture-retrieval URL into the download attempts:
// the original first, then explicit large/normal variants, then the URL
// with the variant parameter stripped. Plain URLs yield just themselves.
func CandidateURLs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := []string{raw}

	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(strings.ToLower(u.Path), "getpicture") {
		return out
	}

	q := u.Query()
	actionKey := "action"
	for k := range q {
		if strings.EqualFold(k, "action") {
			actionKey = k
			break
		}
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	build := func(vals url.Values) string {
		v := *u
		v.RawQuery = vals.Encode()
		return v.String()
	}
	for _, action := range []string{"large", "normal"} {
		vals := cloneValues(q)
		vals.Set(actionKey, action)
		out = append(out, build(vals))
	}
	stripped := cloneValues(q)
	stripped.Del(actionKey)
	out = append(out, build(stripped))
	return out
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ImageSyncer downloads main and gallery images for one run.
type ImageSyncer struct {
	log    zerolog.Logger
	client *feed.Client
}

func NewImageSyncer(log zerolog.Logger) *ImageSyncer {
	c := feed.NewClient(log)
	c.Attempts = 1 // one shot per candidate; the candidate chain is the retry
	return &ImageSyncer{log: log, client: c}
}

// downloadFirstOK walks the candidate chain and returns the first
// successful, non-empty payload, or nil when every candidate fails.
func (s *ImageSyncer) downloadFirstOK(ctx context.Context, rawURL string) []byte {
	for _, cand := range CandidateURLs(rawURL) {
		data, err := s.client.Get(ctx, cand, nil)
		if err != nil {
			continue
		}
		if len(data) > 0 {
			return data
		}
	}
	return nil
}

// SyncMain downloads and stores the main image. Failures are soft: logged,
// reported as ErrImageUndecodable, never aborting the item.
func (s *ImageSyncer) SyncMain(ctx context.Context, tx *gorm.DB, p *db.Product, rawURL string) error {
	if rawURL == "" {
		return nil
	}
	data := s.downloadFirstOK(ctx, rawURL)
	if data == nil || !LooksLikeImage(data) {
		s.log.Info().Str("url", rawURL).Uint("product", p.ID).Msg("main image skipped, not a readable image")
		return fmt.Errorf("main image %s: %w", rawURL, ErrImageUndecodable)
	}
	if err := tx.Model(p).Update("image", data).Error; err != nil {
		return fmt.Errorf("store main image: %w", err)
	}
	p.Image = data
	return nil
}

// SyncGallery reconciles the extra-image gallery: explicit candidates from
// the item, numbered-suffix derivation from the main URL when the item has
// none, dedup against previously imported vendor assets by origin URL, and
// sequence numbers continuing after the current maximum. Returns how many
// images were added and how many candidates were attempted.
func (s *ImageSyncer) SyncGallery(ctx context.Context, tx *gorm.DB, p *db.Product, it feed.Item, vendorName string, replace bool, maxImages int) (added, attempted int, err error) {
	mainURL := strings.TrimSpace(it.ImageURL())
	urls := it.GalleryURLs()
	if len(urls) == 0 && mainURL != "" {
		urls = DeriveNumberedURLs(mainURL, maxImages)
	}

	var clean []string
	seen := map[string]bool{}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || u == mainURL || seen[u] {
			continue
		}
		seen[u] = true
		clean = append(clean, u)
	}
	if len(clean) == 0 {
		return 0, 0, nil
	}

	var existing []db.ProductImage
	if err := tx.Where("product_id = ? AND vendor_origin = ?", p.ID, true).Find(&existing).Error; err != nil {
		return 0, 0, fmt.Errorf("load existing gallery: %w", err)
	}
	byURL := map[string]bool{}
	for _, im := range existing {
		if im.OriginURL != "" {
			byURL[im.OriginURL] = true
		}
	}

	if replace {
		for _, im := range existing {
			if im.OriginURL != "" && !seen[im.OriginURL] {
				if err := tx.Delete(&db.ProductImage{}, im.ID).Error; err != nil {
					return 0, 0, fmt.Errorf("drop stale gallery image %d: %w", im.ID, err)
				}
				delete(byURL, im.OriginURL)
			}
		}
	}

	seqBase := 0
	if err := tx.Model(&db.ProductImage{}).Where("product_id = ?", p.ID).
		Select("COALESCE(MAX(sequence), 0)").Scan(&seqBase).Error; err != nil {
		return 0, 0, fmt.Errorf("gallery sequence: %w", err)
	}
	seqBase += 10

	name := p.Name
	if name == "" {
		name = it.BestID()
	}
	if vendorName == "" {
		vendorName = "Vendor"
	}

	for idx, u := range clean {
		if byURL[u] {
			continue
		}
		attempted++
		data := s.downloadFirstOK(ctx, u)
		if data == nil || !LooksLikeImage(data) {
			continue
		}
		img := db.ProductImage{
			ProductID:    p.ID,
			Name:         name,
			Sequence:     seqBase + idx + 1,
			Data:         data,
			VendorOrigin: true,
			OriginURL:    u,
			OriginVendor: vendorName,
		}
		if err := tx.Create(&img).Error; err != nil {
			return added, attempted, fmt.Errorf("create gallery image: %w", err)
		}
		added++
	}

	if added > 0 {
		s.log.Info().Uint("product", p.ID).Int("added", added).Str("vendor", vendorName).Msg("vendor gallery updated")
	}
	return added, attempted, nil
}
