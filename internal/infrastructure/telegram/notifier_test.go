package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPublishImageUploadsMultipart(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotCaption, gotFile, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotChat = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")
		f, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		gotFile = header.Filename
		raw, _ := io.ReadAll(f)
		gotBody = string(raw)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithAPIBase(srv.URL, srv.Client())
	if err := n.PublishImage(context.Background(), "FTMO #2", "FTMO.png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("PublishImage returned error: %v", err)
	}

	if gotPath != "/bottoken/sendPhoto" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotChat != "42" || gotCaption != "FTMO #2" || gotFile != "FTMO.png" || gotBody != "png-bytes" {
		t.Fatalf("unexpected upload: chat=%s caption=%s file=%s body=%s", gotChat, gotCaption, gotFile, gotBody)
	}
}

func TestPublishDigestReportsErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" || r.FormValue("text") != "hello" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.FormValue("text"))
		}
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithAPIBase(srv.URL+"/", nil)
	n.client = srv.Client()
	err := n.PublishDigest(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestMisconfiguredNotifier(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "42").PublishDigest(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	if got := truncate("ééé", 2); got != "éé" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
}
