package player

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/jukebox/pkg/audio"
	"github.com/papercomputeco/jukebox/pkg/playlist"
	"github.com/papercomputeco/jukebox/pkg/protocol"
	"github.com/papercomputeco/jukebox/pkg/queue"
	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

func (p *Player) handle(req *protocol.Request) *protocol.Response {
	group, ok := req.Kind.Group()
	if !ok {
		return protocol.Errf("invalid value of key `kind`: `%s`", req.Kind)
	}

	switch group {
	case protocol.GroupDevice:
		return p.deviceRequest(req)
	case protocol.GroupPlayback:
		return p.playbackRequest(req)
	case protocol.GroupPlaylist:
		return p.playlistRequest(req)
	case protocol.GroupQueue:
		return p.queueRequest(req)
	case protocol.GroupStatus:
		return p.statusRequest(req)
	default:
		return protocol.Errf("request `%s` cannot be handled by the player", req.Kind)
	}
}

func (p *Player) libraryRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	switch req.Kind {
	case protocol.KindLs:
		listing, err := p.lib.Ls(*req.Dir)
		if err != nil {
			return protocol.Err(err)
		}
		return protocol.OK().With("dirs", listing.Dirs).With("files", listing.Files)

	case protocol.KindMetadata:
		tags, err := req.TagKeys()
		if err != nil {
			return protocol.Err(err)
		}
		if req.Paths != nil {
			return protocol.OK().With("values", p.lib.MetadataByPath(req.Paths, tags))
		}
		return protocol.OK().With("values", p.lib.Metadata(req.IDs, tags))

	case protocol.KindSelect:
		expr, err := req.Expr()
		if err != nil {
			return protocol.Err(err)
		}
		sorters, err := req.Sorters()
		if err != nil {
			return protocol.Err(err)
		}
		return protocol.OK().With("ids", p.lib.Select(expr, sorters))

	case protocol.KindUnique:
		tag, err := tagkey.Parse(req.Tag)
		if err != nil {
			return protocol.Err(err)
		}
		expr, err := req.Expr()
		if err != nil {
			return protocol.Err(err)
		}
		groupBy, err := req.GroupKeys()
		if err != nil {
			return protocol.Err(err)
		}
		return protocol.OK().With("values", p.lib.Unique(tag, expr, groupBy))

	case protocol.KindUpdate:
		n, err := p.lib.Update(ctx)
		if err != nil {
			return protocol.Err(err)
		}
		p.logger.Info("library updated", zap.Int("new_files", n), zap.Int("songs", p.lib.Len()))
		return protocol.OK().With("new_files", n)
	}
	return protocol.Errf("unsupported request `%s`", req.Kind)
}

func (p *Player) deviceRequest(req *protocol.Request) *protocol.Response {
	switch req.Kind {
	case protocol.KindEnable:
		return result(p.engine.Enable(req.Device))
	case protocol.KindDisable:
		return result(p.engine.Disable(req.Device))
	case protocol.KindListDev:
		return protocol.OK().With("devices", p.engine.Devices())
	}
	return protocol.Errf("unsupported request `%s`", req.Kind)
}

func (p *Player) playbackRequest(req *protocol.Request) *protocol.Response {
	switch req.Kind {
	case protocol.KindSetVol:
		p.engine.SetVolume(*req.Volume)
	case protocol.KindChangeVol:
		p.engine.ChangeVolume(*req.Delta)
	case protocol.KindSeek:
		return result(p.engine.Seek(*req.Seconds))
	case protocol.KindSpeed:
		return result(p.engine.SetSpeed(*req.Speed))
	case protocol.KindGapless:
		p.engine.ToggleGapless()
	case protocol.KindPause:
		p.engine.Pause()
	case protocol.KindResume:
		p.engine.Resume()
	case protocol.KindToggle:
		p.engine.Toggle()
	case protocol.KindStop:
		p.queue.Reset()
		p.engine.Stop()
	default:
		return protocol.Errf("unsupported request `%s`", req.Kind)
	}
	return protocol.OK()
}

func (p *Player) playlistRequest(req *protocol.Request) *protocol.Response {
	switch req.Kind {
	case protocol.KindPlaylists:
		names, err := p.playlists.Names()
		if err != nil {
			return protocol.Err(err)
		}
		return protocol.OK().With("playlists", names)

	case protocol.KindListSongs:
		songs, err := p.playlists.Songs(req.Playlist)
		if err != nil {
			return protocol.Err(err)
		}
		return protocol.OK().With("songs", songs)

	case protocol.KindAddPlaylist:
		song, err := p.lib.SongByPath(req.Song)
		if err != nil {
			return protocol.Err(err)
		}
		return result(p.playlists.Append(req.Playlist, song.Rel))

	case protocol.KindRemovePlaylist:
		return result(p.playlists.RemoveAt(req.Playlist, *req.Pos))

	case protocol.KindLoad:
		songs, err := p.playlists.Songs(req.Playlist)
		if err != nil {
			return protocol.Err(err)
		}
		missing := p.enqueuePaths(playlist.Slice(songs, req.Range), req.Pos)
		if len(missing) > 0 {
			return protocol.Errf("song(s) `%s` not found in the database", strings.Join(missing, ","))
		}
		return protocol.OK()

	case protocol.KindSave:
		entries := p.queue.Entries()
		paths := make([]string, len(entries))
		for i, e := range entries {
			paths[i] = e.Path
		}
		return result(p.playlists.Save(req.Path, paths))
	}
	return protocol.Errf("unsupported request `%s`", req.Kind)
}

// enqueuePaths adds songs by path starting at pos and returns the paths that
// are not in the library.
func (p *Player) enqueuePaths(paths []string, pos *int) []string {
	var missing []string
	offset := 0
	for _, path := range paths {
		song, err := p.lib.SongByPath(path)
		if err != nil {
			missing = append(missing, path)
			continue
		}
		p.queue.Add(song.ID, song.Rel, shift(pos, offset))
		offset++
	}
	return missing
}

func (p *Player) enqueueIDs(ids []uint32, pos *int) []string {
	var missing []string
	offset := 0
	for _, id := range ids {
		song, err := p.lib.SongByID(id)
		if err != nil {
			missing = append(missing, strconv.FormatUint(uint64(id), 10))
			continue
		}
		p.queue.Add(song.ID, song.Rel, shift(pos, offset))
		offset++
	}
	return missing
}

func shift(pos *int, offset int) *int {
	if pos == nil {
		return nil
	}
	at := *pos + offset
	return &at
}

func (p *Player) queueRequest(req *protocol.Request) *protocol.Response {
	switch req.Kind {
	case protocol.KindAdd:
		if req.Paths != nil {
			if missing := p.enqueuePaths(req.Paths, req.Pos); len(missing) > 0 {
				return protocol.Errf("file(s) `%s` not found in the database", strings.Join(missing, ","))
			}
			return protocol.OK()
		}
		if missing := p.enqueueIDs(req.IDs, req.Pos); len(missing) > 0 {
			return protocol.Errf("song(s) with id(s) `%s` not found in the database", strings.Join(missing, ","))
		}
		return protocol.OK()

	case protocol.KindRemove:
		for _, id := range req.IDs {
			if _, current := p.queue.Remove(id); current {
				p.engine.Stop()
			}
		}
		return protocol.OK()

	case protocol.KindPlay:
		e, ok := p.queue.MoveTo(*req.ID)
		if !ok {
			return protocol.Errf("song with queue id `%d` not found", *req.ID)
		}
		if err := p.start(e); err != nil {
			p.queue.Reset()
			p.engine.Stop()
			return protocol.Err(err)
		}
		return protocol.OK()

	case protocol.KindClear:
		p.queue.Clear()
		p.engine.Stop()
		return protocol.OK()

	case protocol.KindNext:
		if _, ok := p.nextPlayable(p.queue.Next); !ok {
			p.engine.Stop()
		}
		return protocol.OK()

	case protocol.KindPrevious:
		if _, ok := p.nextPlayable(p.queue.Prev); !ok {
			p.engine.Stop()
		}
		return protocol.OK()

	case protocol.KindRandom:
		p.queue.SetMode(queue.Random)
		return protocol.OK()
	case protocol.KindSequential:
		p.queue.SetMode(queue.Sequential)
		return protocol.OK()
	case protocol.KindSingle:
		p.queue.SetMode(queue.Single)
		return protocol.OK()
	}
	return protocol.Errf("unsupported request `%s`", req.Kind)
}

func (p *Player) statusRequest(req *protocol.Request) *protocol.Response {
	switch req.Kind {
	case protocol.KindState:
		resp := protocol.OK()
		for k, v := range p.stateItems() {
			resp.With(k, v)
		}
		return resp

	case protocol.KindCurrent:
		if e, ok := p.queue.Current(); ok {
			return protocol.OK().With("current", e)
		}
		return protocol.OK().With("current", nil)

	case protocol.KindElapsed:
		return protocol.OK().
			With("elapsed", seconds(p.engine.Elapsed())).
			With("duration", seconds(p.engine.Duration()))

	case protocol.KindQueue:
		return protocol.OK().With("queue", p.queue.Entries())

	case protocol.KindVolume:
		return protocol.OK().With("volume", p.engine.Volume())

	case protocol.KindReset:
		// The per-connection baseline lives in the server.
		return protocol.OK()
	}
	return protocol.Errf("unsupported request `%s`", req.Kind)
}

func (p *Player) stateItems() map[string]any {
	items := map[string]any{
		"state":   int(p.engine.State()),
		"volume":  p.engine.Volume(),
		"speed":   p.engine.Speed(),
		"gapless": p.engine.Gapless(),
		"mode":    p.queue.Mode().String(),
	}
	if p.engine.State() != audio.Stopped {
		items["elapsed"] = seconds(p.engine.Elapsed())
		items["duration"] = seconds(p.engine.Duration())
	}
	if e, ok := p.queue.Current(); ok {
		items["id"] = e.ID
		items["path"] = e.Path
	}
	return items
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func result(err error) *protocol.Response {
	if err != nil {
		return protocol.Err(err)
	}
	return protocol.OK()
}
