package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/handler"
	"github.com/Skryldev/image-api/pipeline"
	"github.com/Skryldev/image-api/utils"
)

const resultsPrefix = "results/"

// single serves one operation: upload, validate, then one chain invocation.
func (s *Server) single(kind core.OperationKind) gin.HandlerFunc {
	endpoint := "/images/" + string(kind)
	return func(c *gin.Context) {
		up, err := s.readImage(c)
		if err != nil {
			fail(c, err)
			return
		}
		params, err := s.deps.Validator.Params(kind, formParams(c))
		if err != nil {
			fail(c, err)
			return
		}
		resp, err := s.deps.Chain.Handle(c.Request.Context(), &core.Request{
			Image:         up.data,
			Params:        params,
			Endpoint:      endpoint,
			Authorization: c.GetHeader("Authorization"),
			ContentType:   up.contentType(),
			Filename:      up.filename(),
		})
		if err != nil {
			fail(c, err)
			return
		}
		send(c, resp)
	}
}

// process validates the whole pipeline before running any step.
func (s *Server) process(c *gin.Context) {
	up, err := s.readImage(c)
	if err != nil {
		fail(c, err)
		return
	}
	raw, ok := c.GetPostForm("pipeline")
	if !ok || strings.TrimSpace(raw) == "" {
		fail(c, apperrors.Validation(apperrors.CodeMissingPipeline, "process", "pipeline is required"))
		return
	}
	p, err := s.deps.Validator.Pipeline(raw)
	if err != nil {
		fail(c, err)
		return
	}

	resp, err := s.deps.Runner.Run(c.Request.Context(), pipeline.Input{
		Image:         up.data,
		ContentType:   up.contentType(),
		Filename:      up.filename(),
		Endpoint:      "/images/process",
		Authorization: c.GetHeader("Authorization"),
	}, p)
	if err != nil {
		fail(c, err)
		return
	}

	if s.deps.Storage != nil {
		id, err := s.archive(c.Request.Context(), resp)
		if err != nil {
			s.deps.Logger.Warn("result archive failed", "error", err.Error())
		} else {
			c.Header("X-Result-Id", id)
		}
	}
	send(c, resp)
}

// archive stores resp under results/<uuid>.<ext> and returns "<uuid>.<ext>".
// A retryable storage failure is attempted once more.
func (s *Server) archive(ctx context.Context, resp *core.Response) (string, error) {
	id := uuid.NewString() + "." + core.FormatFromContentType(resp.ContentType).Extension()
	key := core.StorageKey{Path: resultsPrefix + id}
	meta := map[string]string{"content-type": resp.ContentType}

	err := s.deps.Storage.Put(ctx, key, bytes.NewReader(resp.Body), meta)
	if apperrors.IsRetryable(err) {
		s.deps.Logger.Debug("retrying result archive", "key", key.Path, "error", err.Error())
		err = s.deps.Storage.Put(ctx, key, bytes.NewReader(resp.Body), meta)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// resultKey authenticates the caller and maps the :id parameter onto its
// storage key. Malformed ids are reported as missing.
func (s *Server) resultKey(c *gin.Context) (core.StorageKey, string, error) {
	if _, err := handler.Authenticate(c.Request.Context(), s.deps.Accounts, c.GetHeader("Authorization")); err != nil {
		return core.StorageKey{}, "", err
	}
	id := c.Param("id")
	ext := path.Ext(id)
	if _, err := uuid.Parse(strings.TrimSuffix(id, ext)); err != nil || !knownExtension(ext) {
		return core.StorageKey{}, "", apperrors.NotFound("results", "Result not found")
	}
	return core.StorageKey{Path: resultsPrefix + id}, ext, nil
}

// result serves an archived pipeline output to any authenticated caller.
func (s *Server) result(c *gin.Context) {
	ctx := c.Request.Context()
	key, ext, err := s.resultKey(c)
	if err != nil {
		fail(c, err)
		return
	}

	rc, err := s.deps.Storage.Get(ctx, key)
	if err != nil {
		fail(c, err)
		return
	}
	defer rc.Close()
	body, err := utils.ReadAll(ctx, rc, s.deps.ChunkSize, 0)
	if err != nil {
		fail(c, apperrors.Wrap(apperrors.CategoryStorage, "results.read", err))
		return
	}

	send(c, &core.Response{
		Body:        body,
		ContentType: mimetype.Detect(body).String(),
		Filename:    "processed-image" + ext,
	})
}

// deleteResult removes an archived output.
func (s *Server) deleteResult(c *gin.Context) {
	ctx := c.Request.Context()
	key, _, err := s.resultKey(c)
	if err != nil {
		fail(c, err)
		return
	}

	ok, err := s.deps.Storage.Exists(ctx, key)
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		fail(c, apperrors.NotFound("results.delete", "Result not found"))
		return
	}
	if err := s.deps.Storage.Delete(ctx, key); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func knownExtension(ext string) bool {
	switch ext {
	case ".jpg", ".png", ".webp":
		return true
	}
	return false
}

func send(c *gin.Context, resp *core.Response) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
	c.Data(http.StatusOK, resp.ContentType, resp.Body)
}
