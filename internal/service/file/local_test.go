package file

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir(), "/files/")
	if err != nil {
		t.Fatalf("NewLocalStorage() error: %v", err)
	}
	ctx := context.Background()

	key, err := st.Save(ctx, &SaveRequest{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Size:        5,
		Reader:      strings.NewReader("hello"),
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !strings.HasPrefix(key, "user-1/") || !strings.HasSuffix(key, ".txt") {
		t.Errorf("accessKey = %q, want user-1/<uuid>.txt", key)
	}

	rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}

	if got := st.GetURL(key); got != "/files/"+key {
		t.Errorf("GetURL() = %q", got)
	}

	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := st.Get(ctx, key); err == nil {
		t.Error("Get() after delete succeeded")
	}

	// 删除不存在的文件不报错
	if err := st.Delete(ctx, "user-1/missing.txt"); err != nil {
		t.Errorf("Delete() missing file error: %v", err)
	}
}

func TestLocalStorage_AnonymousAndExtensionFallback(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir(), "/files")
	if err != nil {
		t.Fatalf("NewLocalStorage() error: %v", err)
	}

	key, err := st.Save(context.Background(), &SaveRequest{
		FileName:    "upload",
		ContentType: "image/png",
		Size:        1,
		Reader:      strings.NewReader("x"),
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !strings.HasPrefix(key, "anonymous/") {
		t.Errorf("accessKey = %q, want anonymous prefix", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("accessKey = %q, want .png inferred from content type", key)
	}
}
