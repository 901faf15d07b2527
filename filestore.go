package namechain

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrFileNotFound 文件不存在
var ErrFileNotFound = errors.New("file not found")

// FileStore 封装了数据目录下的文件操作
type FileStore struct {
	Fs       afero.Fs
	BasePath string
}

// NewFileStore 在文件系统 fs 的 basePath 下创建 FileStore，fs 为空时使用操作系统文件系统
func NewFileStore(fs afero.Fs, basePath string) (*FileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileStore{Fs: fs, BasePath: basePath}, nil
}

// path 返回文件的完整路径
func (fs *FileStore) path(subDir, fileName string) string {
	return filepath.Join(fs.BasePath, subDir, fileName)
}

// CreateFile 在指定子目录创建一个新的空文件
func (fs *FileStore) CreateFile(subDir, fileName string) error {
	if err := fs.Fs.MkdirAll(filepath.Join(fs.BasePath, subDir), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := fs.Fs.Create(fs.path(subDir, fileName))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return file.Close()
}

// WriteFile 写入文件内容，先写临时文件再重命名，中途失败不会破坏原文件
func (fs *FileStore) WriteFile(subDir, fileName string, write func(w io.Writer) error) error {
	if err := fs.Fs.MkdirAll(filepath.Join(fs.BasePath, subDir), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	target := fs.path(subDir, fileName)
	tmp := target + ".new"

	file, err := fs.Fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		fs.Fs.Remove(tmp)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		fs.Fs.Remove(tmp)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := fs.Fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// ReadFile 打开文件并交给 read 处理，文件不存在时返回 ErrFileNotFound
func (fs *FileStore) ReadFile(subDir, fileName string, read func(r io.Reader) error) error {
	file, err := fs.Fs.Open(fs.path(subDir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return read(file)
}

// Exists 返回文件是否存在
func (fs *FileStore) Exists(subDir, fileName string) (bool, error) {
	return afero.Exists(fs.Fs, fs.path(subDir, fileName))
}

// Remove 删除文件，文件不存在时不报错
func (fs *FileStore) Remove(subDir, fileName string) error {
	err := fs.Fs.Remove(fs.path(subDir, fileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
