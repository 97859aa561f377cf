package httpapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/hatemjaber/image-resize-server/internal/apperr"
	"github.com/hatemjaber/image-resize-server/internal/objstore"
	"github.com/hatemjaber/image-resize-server/internal/server/services"
)

const filesField = "files"

func (s *Server) health(ctx context.Context, c *app.RequestContext) {
	if err := s.images.Ping(ctx); err != nil {
		s.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// getByReference serves GET /images?ref=TOKEN[&size=WxH].
func (s *Server) getByReference(ctx context.Context, c *app.RequestContext) {
	key, err := s.images.ResolveReference(c.Query("ref"))
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}
	s.serve(ctx, c, key)
}

// getByKey serves GET /images/:prefix/*path[?size=WxH].
func (s *Server) getByKey(ctx context.Context, c *app.RequestContext) {
	key, err := services.PlainKey(c.Param("prefix"), c.Param("path"))
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}
	s.serve(ctx, c, key)
}

func (s *Server) serve(ctx context.Context, c *app.RequestContext, key string) {
	obj, err := s.images.Fetch(ctx, key, c.Query("size"))
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}
	writeObject(c, obj)
}

func writeObject(c *app.RequestContext, obj *objstore.Object) {
	contentType := obj.ContentType
	if contentType == "" {
		contentType = consts.MIMEApplicationOctetStream
	}
	c.Data(consts.StatusOK, contentType, obj.Data)
}

// upload handles POST /images/:prefix with multipart field "files".
func (s *Server) upload(ctx context.Context, c *app.RequestContext) {
	prefix := c.Param("prefix")
	if err := services.ValidatePrefix(prefix); err != nil {
		s.writeError(ctx, c, err)
		return
	}

	files, err := s.readFiles(c)
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}

	results, err := s.images.Upload(ctx, prefix, files)
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}

	s.logger.Info(ctx, "upload accepted", "prefix", prefix, "files", len(results), "subject", c.GetString(subjectKey))
	c.JSON(consts.StatusCreated, map[string]any{"files": results})
}

// replace handles PUT /images/:prefix/*path with exactly one file.
func (s *Server) replace(ctx context.Context, c *app.RequestContext) {
	key, err := services.PlainKey(c.Param("prefix"), c.Param("path"))
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}

	files, err := s.readFiles(c)
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}
	if len(files) != 1 {
		s.writeError(ctx, c, apperr.ClientInput(apperr.CodeTooManyFiles, "exactly one file is required").With("max", "1"))
		return
	}

	res, err := s.images.Replace(ctx, key, files[0])
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// delete handles DELETE /images/:prefix/*path.
func (s *Server) delete(ctx context.Context, c *app.RequestContext) {
	key, err := services.PlainKey(c.Param("prefix"), c.Param("path"))
	if err != nil {
		s.writeError(ctx, c, err)
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.writeError(ctx, c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

// readFiles collects the "files" parts of a multipart request. Count and
// size limits are checked before any part is read into memory.
func (s *Server) readFiles(c *app.RequestContext) ([]services.UploadFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindClientInput, apperr.CodeNoFile, "multipart form with field \"files\" is required", err)
	}

	headers := form.File[filesField]
	if len(headers) == 0 {
		return nil, apperr.ClientInput(apperr.CodeNoFile, "no file provided")
	}
	if s.opts.MaxFiles > 0 && len(headers) > s.opts.MaxFiles {
		return nil, apperr.ClientInput(apperr.CodeTooManyFiles, "too many files").With("max", fmt.Sprint(s.opts.MaxFiles))
	}

	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if s.opts.MaxUploadBytes > 0 && fh.Size > s.opts.MaxUploadBytes {
			return nil, apperr.ClientInput(apperr.CodeFileTooLarge, "file too large").With("file", fh.Filename)
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, services.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", fh.Filename, err)
	}
	return data, nil
}
