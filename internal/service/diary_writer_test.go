package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noteBlock = `Maid: 小夜
Date: 2025.6.1
Content: 今天陪主人看了海，
晚上吃了烤鱼。`

func TestDiaryWriterSave(t *testing.T) {
	dir := t.TempDir()
	NewDiaryWriter(dir).Save(noteBlock)

	data, err := os.ReadFile(filepath.Join(dir, "小夜", "2025", "6", "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "[2025/6/1] - 小夜\n今天陪主人看了海，\n晚上吃了烤鱼。", string(data))
}

func TestDiaryWriterCollisionProbing(t *testing.T) {
	dir := t.TempDir()
	w := NewDiaryWriter(dir)
	w.Save("Maid: 小夜\nDate: 2025/6/1\nContent: 第一篇")
	w.Save("Maid: 小夜\nDate: 2025-6-1\nContent: 第二篇")
	w.Save("Maid: 小夜\nDate: 2025.6.1\nContent: 第三篇")

	first, err := os.ReadFile(filepath.Join(dir, "小夜", "2025", "6", "1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "第一篇", "已有文件绝不覆盖")

	second, err := os.ReadFile(filepath.Join(dir, "小夜", "2025", "6", "1(1).txt"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "第二篇")

	third, err := os.ReadFile(filepath.Join(dir, "小夜", "2025", "6", "1(2).txt"))
	require.NoError(t, err)
	assert.Contains(t, string(third), "第三篇")
}

func TestDiaryWriterRejectsIncompleteBlocks(t *testing.T) {
	cases := []struct {
		name string
		note string
	}{
		{"缺Maid", "Date: 2025.6.1\nContent: 正文"},
		{"缺Date", "Maid: 小夜\nContent: 正文"},
		{"缺Content", "Maid: 小夜\nDate: 2025.6.1"},
		{"日期不可解析", "Maid: 小夜\nDate: 六月一日\nContent: 正文"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			NewDiaryWriter(dir).Save(tc.note)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "不完整的日记块不应产生任何文件")
		})
	}
}

func TestDiaryWriterThenReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	NewDiaryWriter(dir).Save(noteBlock)

	out := NewDiaryReader(dir).Render("小夜")
	assert.Contains(t, out, "今天陪主人看了海")
	assert.Contains(t, out, "【小夜日记本内容如下】")
}
