// Package media keeps the one shared video of the room on disk.
//
// The video lives in the media dir as <name><ext> (current_movie.mp4),
// a new upload replaces it whatever the extension is.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/uuid"
	"github.com/watchparty/watchparty/pkg/api"
	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
	xos "github.com/watchparty/watchparty/pkg/os"
	"github.com/watchparty/watchparty/pkg/storage"
)

const (
	UrlPrefix = "/uploads/"
	// the display name of an existing video for new participants
	CurrentName = "Current Movie"
	defaultExt  = ".mp4"
	partExt     = ".part"
)

var (
	ErrNoFile         = errors.New("no file")
	ErrTooLarge       = errors.New("file is too large")
	ErrImportDisabled = errors.New("import is disabled")
)

type Library struct {
	dir    string
	name   string
	conf   config.Media
	lock   *xos.Flock
	mirror storage.CloudStorage
	grab   *grab.Client
	log    *logger.Logger

	// a scan never sees the dir in the middle of a replace
	files sync.Mutex

	mu       sync.Mutex
	current  *api.Media
	modTime  time.Time
	onChange func(api.Media)
	onRemove func()

	// to restrict parallel execution or throttling
	// for file watch mode
	isScanning        bool
	isScanningDelayed bool
	watcher           *fsnotify.Watcher
}

func NewLibrary(conf config.Media, mirror storage.CloudStorage, log *logger.Logger) (*Library, error) {
	dir, err := filepath.Abs(conf.Dir)
	if err != nil {
		return nil, err
	}
	if err = xos.CheckCreateDir(dir); err != nil {
		return nil, fmt.Errorf("media dir: %w", err)
	}
	lock, err := xos.NewFileLock(dir)
	if err != nil {
		return nil, fmt.Errorf("media lock: %w", err)
	}
	if mirror == nil {
		mirror = storage.NewNoopCloudStorage()
	}
	lib := &Library{
		dir:    dir,
		name:   conf.Name,
		conf:   conf,
		lock:   lock,
		mirror: mirror,
		grab:   grab.NewClient(),
		log:    log,
	}
	lib.Scan()
	return lib, nil
}

func (l *Library) Dir() string { return l.dir }

// OnChange sets a callback for a new current video.
func (l *Library) OnChange(fn func(api.Media)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// OnRemove sets a callback for when the current video is gone from the disk.
func (l *Library) OnRemove(fn func()) {
	l.mu.Lock()
	l.onRemove = fn
	l.mu.Unlock()
}

func (l *Library) Current() (api.Media, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return api.Media{}, false
	}
	return *l.current, true
}

// Save stores an uploaded video as the current one.
// The callback is not called, the caller announces the video itself.
func (l *Library) Save(filename string, r io.Reader) (api.Media, error) {
	if r == nil {
		return api.Media{}, ErrNoFile
	}
	part := l.partFile()
	f, err := os.Create(part)
	if err != nil {
		return api.Media{}, err
	}
	n, err := io.Copy(f, io.LimitReader(r, l.conf.MaxBytes()+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > l.conf.MaxBytes() {
		err = ErrTooLarge
	}
	if err == nil && n == 0 {
		err = ErrNoFile
	}
	if err != nil {
		_ = os.Remove(part)
		return api.Media{}, err
	}
	return l.commit(part, filename)
}

// Import downloads a video from the URL as the current one.
func (l *Library) Import(ctx context.Context, url string) (api.Media, error) {
	if !l.conf.Import.Enabled {
		return api.Media{}, ErrImportDisabled
	}
	if l.conf.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.conf.Import.Timeout)
		defer cancel()
	}
	part := l.partFile()
	req, err := grab.NewRequest(part, url)
	if err != nil {
		return api.Media{}, err
	}
	req = req.WithContext(ctx)

	l.log.Info().Str("url", url).Msg("Downloading")
	resp := l.grab.Do(req)
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
Loop:
	for {
		select {
		case <-t.C:
			l.log.Debug().Msgf("  transferred %v / %v bytes (%.2f%%)",
				resp.BytesComplete(), resp.Size(), 100*resp.Progress())
			if resp.BytesComplete() > l.conf.MaxBytes() {
				_ = resp.Cancel()
			}
		case <-resp.Done:
			// download is complete
			break Loop
		}
	}
	if err = resp.Err(); err != nil {
		_ = os.Remove(part)
		return api.Media{}, fmt.Errorf("download: %w", err)
	}
	if resp.BytesComplete() > l.conf.MaxBytes() {
		_ = os.Remove(part)
		return api.Media{}, ErrTooLarge
	}
	name := path.Base(req.URL().Path)
	if name == "/" || name == "." {
		name = "video" + defaultExt
	}
	return l.commit(part, name)
}

// commit puts a finished file in place of the current video.
func (l *Library) commit(part string, filename string) (api.Media, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == partExt {
		ext = defaultExt
	}
	dst := filepath.Join(l.dir, l.name+ext)

	l.files.Lock()
	if err := l.lock.Lock(); err != nil {
		l.files.Unlock()
		_ = os.Remove(part)
		return api.Media{}, fmt.Errorf("lock: %w", err)
	}
	err := l.replace(part, dst)
	if uerr := l.lock.Unlock(); uerr != nil {
		l.log.Warn().Err(uerr).Msg("unlock")
	}
	l.files.Unlock()
	if err != nil {
		_ = os.Remove(part)
		return api.Media{}, err
	}

	media := api.Media{Url: UrlPrefix + filepath.Base(dst), Filename: filepath.Base(filename)}
	l.mu.Lock()
	l.current = &media
	if st, err := os.Stat(dst); err == nil {
		l.modTime = st.ModTime()
	}
	l.mu.Unlock()
	l.log.Info().Str("file", media.Filename).Str("url", media.Url).Msg("New video")

	go l.mirrorFile(dst)
	return media, nil
}

// replace removes all the previous videos and moves the new one in.
func (l *Library) replace(part string, dst string) error {
	old, err := l.videos()
	if err != nil {
		return err
	}
	for _, f := range old {
		if f != dst {
			if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}
	return os.Rename(part, dst)
}

func (l *Library) mirrorFile(file string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := l.mirror.Save(ctx, filepath.Base(file), file); err != nil {
		l.log.Error().Err(err).Str("file", file).Msg("Mirror failed")
	}
}

// videos lists all the current video files by any extension.
func (l *Library) videos() ([]string, error) {
	return filepath.Glob(filepath.Join(l.dir, l.name+".*"))
}

func (l *Library) partFile() string {
	return filepath.Join(l.dir, "."+uuid.Must(uuid.NewV4()).String()+partExt)
}

// Scan finds the current video on the disk,
// the change callback is called if it's not the one already known.
func (l *Library) Scan() {
	// scan throttling
	l.mu.Lock()
	if l.isScanning {
		l.isScanningDelayed = true
		l.mu.Unlock()
		l.log.Debug().Msg("Media scan... delayed")
		return
	}
	l.isScanning = true
	l.mu.Unlock()

	l.scan()

	// run scan again if delayed
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isScanning = false
	if l.isScanningDelayed {
		l.isScanningDelayed = false
		go l.Scan()
	}
}

func (l *Library) scan() {
	latest, mod, err := l.latest()
	if err != nil {
		l.log.Error().Err(err).Str("dir", l.dir).Msg("Media scan... failed")
		return
	}

	l.mu.Lock()
	if latest == "" {
		gone := l.current != nil
		l.current, l.modTime = nil, time.Time{}
		fn := l.onRemove
		l.mu.Unlock()
		if gone {
			l.log.Info().Msg("Media scan... the video is gone")
			if fn != nil {
				fn()
			}
		}
		return
	}
	url := UrlPrefix + filepath.Base(latest)
	if l.current != nil && l.current.Url == url && l.modTime.Equal(mod) {
		l.mu.Unlock()
		return
	}
	media := api.Media{Url: url, Filename: CurrentName}
	l.current, l.modTime = &media, mod
	fn := l.onChange
	l.mu.Unlock()

	l.log.Info().Str("url", url).Msg("Media scan... found a video")
	if fn != nil {
		fn(media)
	}
}

// latest finds the newest video file.
func (l *Library) latest() (latest string, mod time.Time, err error) {
	l.files.Lock()
	defer l.files.Unlock()
	files, err := l.videos()
	if err != nil {
		return "", mod, err
	}
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil || st.IsDir() || strings.HasSuffix(f, partExt) {
			continue
		}
		if latest == "" || st.ModTime().After(mod) {
			latest, mod = f, st.ModTime()
		}
	}
	return latest, mod, nil
}

// Run watches the media dir for videos put there by hand.
func (l *Library) Run() {
	if !l.conf.WatchMode {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.Error().Err(err).Msg("Media watcher has failed")
		return
	}
	if err = watcher.Add(l.dir); err != nil {
		l.log.Error().Err(err).Msg("Media watch error")
		_ = watcher.Close()
		return
	}
	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					l.log.Info().Msg("Media watch has ended")
					return
				}
				if !l.isVideoEvent(event) {
					continue
				}
				l.Scan()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log.Warn().Err(err).Msg("Media watch")
			}
		}
	}()
}

func (l *Library) isVideoEvent(e fsnotify.Event) bool {
	name := filepath.Base(e.Name)
	if xos.IsLockFile(name) || strings.HasSuffix(name, partExt) || !strings.HasPrefix(name, l.name+".") {
		return false
	}
	return e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename)
}

func (l *Library) Shutdown(context.Context) error {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

func (l *Library) String() string { return "media library " + l.dir }
