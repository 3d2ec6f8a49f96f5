package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiaryRenderSortsByDateAndSequence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "2.txt"), "五月二日第一篇")
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "2(1).txt"), "五月二日第二篇")
	writeFile(t, filepath.Join(dir, "小夜", "2025", "4", "30.txt"), "四月三十日")

	out := NewDiaryReader(dir).Render("小夜")

	require.True(t, strings.HasPrefix(out, "【小夜日记本内容如下】\n\n"))
	require.True(t, strings.HasSuffix(out, "\n\n【小夜日记本结束】"))

	first := strings.Index(out, "[2025/4/30]\n四月三十日")
	second := strings.Index(out, "[2025/5/2]\n五月二日第一篇")
	third := strings.Index(out, "[2025/5/2(1)]\n五月二日第二篇")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	require.NotEqual(t, -1, third)
	assert.Less(t, first, second, "按日期升序")
	assert.Less(t, second, third, "同日按序号升序")
	assert.Equal(t, 2, strings.Count(out, "\n\n---\n\n"), "条目之间用分隔线")
}

func TestDiaryRenderMissingCharacter(t *testing.T) {
	out := NewDiaryReader(t.TempDir()).Render("无名")
	assert.Equal(t, "【无名日记本内容为空或不存在】", out)
}

func TestDiaryRenderEmptyTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "小夜", "2025", "5"), 0o755))
	out := NewDiaryReader(dir).Render("小夜")
	assert.Equal(t, "【小夜日记本内容为空或不存在】", out)
}

func TestDiaryRenderWhitespaceOnlyEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "2.txt"), "   \n\t\n")

	out := NewDiaryReader(dir).Render("小夜")
	assert.Equal(t, "【小夜日记本内容为空，但文件存在】", out, "文件都在但没有正文")
}

func TestDiaryRenderSkipsBlankEntriesAmongRealOnes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "1.txt"), "  \n")
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "2.txt"), "真正的内容")

	out := NewDiaryReader(dir).Render("小夜")
	assert.Contains(t, out, "[2025/5/2]\n真正的内容")
	assert.Equal(t, 0, strings.Count(out, "---"), "空白条目不留下多余的分隔线")
}

func TestDiaryRenderUnreadableEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "1.txt"), "读得到的")
	// 指向不存在目标的符号链接，ReadFile 必然失败
	require.NoError(t, os.Symlink(filepath.Join(dir, "不存在的目标"), filepath.Join(dir, "小夜", "2025", "5", "2.txt")))

	out := NewDiaryReader(dir).Render("小夜")
	assert.Contains(t, out, "读得到的")
	assert.Contains(t, out, "[读取文件 2.txt 失败]", "坏条目用行内错误标记占位")
}

func TestDiaryRenderSkipsUnparsableNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "2.txt"), "正常条目")
	writeFile(t, filepath.Join(dir, "小夜", "2025", "5", "备注.txt"), "不是日期命名")
	writeFile(t, filepath.Join(dir, "小夜", "随笔.txt"), "层级不够")

	out := NewDiaryReader(dir).Render("小夜")
	assert.Contains(t, out, "正常条目")
	assert.NotContains(t, out, "不是日期命名")
	assert.NotContains(t, out, "层级不够")
}
