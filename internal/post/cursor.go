package post

import (
	"strings"
	"time"

	"github.com/hitoshi/socialfeed/internal/model"
)

// cursorSeparator はカーソル文字列の時刻とIDの区切り。
const cursorSeparator = "|"

// EncodeCursor はページ末尾の投稿からカーソル文字列を生成する。
// 形式は "<RFC3339Nano>|<id>"。
func EncodeCursor(c model.Cursor) string {
	if c.IsZero() {
		return ""
	}
	return c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.ID
}

// DecodeCursor はカーソル文字列を解析する。空文字列は先頭を示すゼロ値になる。
// 形式が不正な場合はINVALID_INPUTを返す。
func DecodeCursor(s string) (model.Cursor, error) {
	if s == "" {
		return model.Cursor{}, nil
	}

	ts, id, ok := strings.Cut(s, cursorSeparator)
	if !ok {
		return model.Cursor{}, model.NewInvalidInputError("無効なカーソル値: " + s)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return model.Cursor{}, model.NewInvalidInputError("無効なカーソル値: " + s)
	}
	if !model.ValidID(id) {
		return model.Cursor{}, model.NewInvalidInputError("無効なカーソル値: " + s)
	}

	return model.Cursor{CreatedAt: createdAt, ID: id}, nil
}
