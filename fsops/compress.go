package fsops

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	sgerrors "sglx-remote/errors"
	sglog "sglx-remote/log"
)

// CompressedSuffix 是压缩输出目录相对源目录追加的后缀。
const CompressedSuffix = "_compressed"

// Compressor 是录制目录的压缩能力：输入源目录，返回压缩后目录。
type Compressor interface {
	Compress(srcDir string) (string, error)
}

type codecWriter func(w io.Writer) (io.WriteCloser, error)

// DirCompressor 逐文件压缩整棵目录树，输出到 <src>_compressed，保持相对路径并追加编码扩展名。
type DirCompressor struct {
	codec string
	ext   string
	wrap  codecWriter
}

// NewCompressor 按编码名创建压缩器。
// 参数：
// - codec: "zstd" 或 "lz4"
// - level: zstd 为 1..22 的 zstd 级别；lz4 为 0（fast）..9
// 返回：
// - *DirCompressor: 压缩器
// - error: 未知编码
func NewCompressor(codec string, level int) (*DirCompressor, error) {
	switch codec {
	case "", "zstd":
		if level <= 0 {
			level = 3
		}
		enc := zstd.EncoderLevelFromZstd(level)
		return &DirCompressor{codec: "zstd", ext: ".zst", wrap: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(enc))
		}}, nil
	case "lz4":
		lvl := lz4Level(level)
		return &DirCompressor{codec: "lz4", ext: ".lz4", wrap: func(w io.Writer) (io.WriteCloser, error) {
			zw := lz4.NewWriter(w)
			if err := zw.Apply(lz4.CompressionLevelOption(lvl)); err != nil {
				return nil, err
			}
			return zw, nil
		}}, nil
	default:
		return nil, sgerrors.New(sgerrors.CodeInternal, fmt.Sprintf("unknown compression codec: %q", codec))
	}
}

func lz4Level(level int) lz4.CompressionLevel {
	levels := []lz4.CompressionLevel{lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
		lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9}
	if level < 0 {
		level = 0
	}
	if level >= len(levels) {
		level = len(levels) - 1
	}
	return levels[level]
}

// Codec 返回编码名。
func (c *DirCompressor) Codec() string { return c.codec }

// Ext 返回压缩文件扩展名（含点）。
func (c *DirCompressor) Ext() string { return c.ext }

// Compress 压缩 srcDir 下所有文件。
// 返回：
// - string: 压缩输出目录
// - error: CodeFilesystem（源目录缺失或 I/O 失败）
func (c *DirCompressor) Compress(srcDir string) (string, error) {
	srcDir = filepath.Clean(srcDir)
	if st, err := os.Stat(srcDir); err != nil || !st.IsDir() {
		return "", sgerrors.Wrap(sgerrors.CodeFilesystem, "compress source missing: "+srcDir, err)
	}
	dstDir := srcDir + CompressedSuffix
	var in, out int64
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		n, m, err := c.compressFile(p, target+c.ext)
		in += n
		out += m
		return err
	})
	if err != nil {
		return "", sgerrors.Wrap(sgerrors.CodeFilesystem, "compress failed", err)
	}
	sglog.With(map[string]any{"src": srcDir, "dst": dstDir, "codec": c.codec, "in": humanize.IBytes(uint64(in)), "out": humanize.IBytes(uint64(out)), "status": "compress_ok"}).Info("录制目录压缩完成")
	return dstDir, nil
}

// compressFile 流式压缩单个文件，返回原始字节数与压缩后字节数。
func (c *DirCompressor) compressFile(src, dst string) (int64, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	o, err := os.Create(dst)
	if err != nil {
		return 0, 0, err
	}
	w, err := c.wrap(o)
	if err != nil {
		_ = o.Close()
		return 0, 0, err
	}
	n, err := io.Copy(w, f)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	var size int64
	if st, serr := o.Stat(); serr == nil {
		size = st.Size()
	}
	if cerr := o.Close(); err == nil {
		err = cerr
	}
	return n, size, err
}
