package social

import (
	"encoding/json"
	"testing"

	"social-ingest/internal/media"
)

func decode(t *testing.T, rec *ProfileRecord) map[string]any {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return m
}

func TestProfileRecordJSONFlattensImages(t *testing.T) {
	rec := &ProfileRecord{
		Platform:    PlatformInstagram,
		Username:    "someone",
		DisplayName: "Some One",
		Bio:         "hello",
		MediaRefs: []*media.Ref{
			{StoredKey: "social/instagram/a.jpg", PublicURL: "http://minio.test/media/social/instagram/a.jpg"},
			{StoredKey: "social/instagram/b.jpg", PublicURL: "http://minio.test/media/social/instagram/b.jpg"},
		},
	}

	m := decode(t, rec)
	if m["platform"] != "instagram" || m["username"] != "someone" || m["displayName"] != "Some One" || m["bio"] != "hello" {
		t.Errorf("scalar fields = %v", m)
	}
	imgs, ok := m["images"].([]any)
	if !ok || len(imgs) != 2 || imgs[0] != "http://minio.test/media/social/instagram/a.jpg" {
		t.Errorf("images = %v", m["images"])
	}
	for _, k := range []string{"title", "description", "image", "favicon"} {
		if _, present := m[k]; present {
			t.Errorf("non open graph record has %q", k)
		}
	}
}

func TestProfileRecordJSONEmptyImagesIsArray(t *testing.T) {
	m := decode(t, &ProfileRecord{Platform: PlatformTwitter, Username: "jack"})
	imgs, ok := m["images"].([]any)
	if !ok || len(imgs) != 0 {
		t.Errorf("images = %#v, want []", m["images"])
	}
}

func TestProfileRecordJSONOpenGraph(t *testing.T) {
	img := &media.Ref{PublicURL: "http://minio.test/media/social/og/x.jpg"}
	rec := &ProfileRecord{
		Platform:    PlatformOpenGraph,
		DisplayName: "Acme",
		MediaRefs:   []*media.Ref{img},
		OpenGraph: &PageInfo{
			Title:       "Acme",
			Description: "Things",
			Image:       img,
			Favicon:     &media.Ref{PublicURL: "http://minio.test/media/social/favicon/f.png"},
		},
	}

	m := decode(t, rec)
	if m["title"] != "Acme" || m["description"] != "Things" {
		t.Errorf("og fields = %v", m)
	}
	if m["image"] != img.PublicURL {
		t.Errorf("image = %v", m["image"])
	}
	if m["favicon"] != "http://minio.test/media/social/favicon/f.png" {
		t.Errorf("favicon = %v", m["favicon"])
	}
	if _, ok := m["siteName"]; ok {
		t.Error("empty siteName should be omitted")
	}
}

func TestProfileRecordJSONMissingImageIsNull(t *testing.T) {
	rec := &ProfileRecord{
		Platform:    PlatformOpenGraph,
		DisplayName: "example.com",
		OpenGraph:   &PageInfo{Title: "example.com"},
	}

	m := decode(t, rec)
	v, present := m["image"]
	if !present || v != nil {
		t.Errorf("image = %v (present=%t), want null", v, present)
	}
	if _, ok := m["favicon"]; ok {
		t.Error("missing favicon should be omitted")
	}
}
