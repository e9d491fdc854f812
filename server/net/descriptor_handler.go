package net

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xmysql-tabledef/logger"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/catalog"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/snapshot"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DescriptorResponse is the body of a descriptor lookup.
type DescriptorResponse struct {
	Descriptor  *tableshare.TableDescriptor `json:"descriptor"`
	Diagnostics tableshare.Diagnostics      `json:"diagnostics"`
	Cached      bool                        `json:"cached"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// DescriptorHandler serves compiled table descriptors over HTTP.
//
// Implemented routes:
// - GET /healthz
// - GET /tables/{schema}
// - GET /tables/{schema}/{table}
// - GET /tables/{schema}/{table}/partitions
// - GET /tables/{schema}/{table}/snapshot?compress=lz4
// - DELETE /tables/{schema}/{table}/cache
type DescriptorHandler struct {
	provider catalog.Provider
	compiler *tableshare.Compiler
	cache    *DescriptorCache
	router   chi.Router
}

// NewDescriptorHandler wires the routes.
func NewDescriptorHandler(provider catalog.Provider, compiler *tableshare.Compiler, cache *DescriptorCache) *DescriptorHandler {
	h := &DescriptorHandler{provider: provider, compiler: compiler, cache: cache}
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Route("/tables/{schema}", func(r chi.Router) {
		r.Get("/", h.listTables)
		r.Route("/{table}", func(r chi.Router) {
			r.Get("/", h.describe)
			r.Get("/partitions", h.partitions)
			r.Get("/snapshot", h.snapshot)
			r.Delete("/cache", h.invalidate)
		})
	})
	h.router = r
	return h
}

func (h *DescriptorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *DescriptorHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "cached": h.cache.Len()})
}

func (h *DescriptorHandler) listTables(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	names, err := h.provider.ListTables(r.Context(), schema)
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schema": schema, "tables": names})
}

// load compiles schema.table through the cache.
func (h *DescriptorHandler) load(r *http.Request) (*compiledTable, bool, error) {
	schema, table := chi.URLParam(r, "schema"), chi.URLParam(r, "table")
	return h.cache.GetOrCompile(schema, table, func() (*compiledTable, error) {
		start := time.Now()
		tab, err := h.provider.LoadTable(r.Context(), schema, table)
		if err != nil {
			return nil, err
		}
		desc, diags, err := h.compiler.Compile(tab)
		fields := logrus.Fields{"table": tab.QualifiedName(), "elapsed": time.Since(start).String()}
		if err != nil {
			logger.WithFields(fields).Warnf("compile failed: %v", err)
			return nil, err
		}
		fields["diagnostics"] = len(diags)
		logger.WithFields(fields).Info("compiled table")
		return &compiledTable{desc: desc, diags: diags}, nil
	})
}

func (h *DescriptorHandler) describe(w http.ResponseWriter, r *http.Request) {
	e, cached, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	diags := e.diags
	if diags == nil {
		diags = tableshare.Diagnostics{}
	}
	writeJSON(w, http.StatusOK, DescriptorResponse{Descriptor: e.desc, Diagnostics: diags, Cached: cached})
}

func (h *DescriptorHandler) partitions(w http.ResponseWriter, r *http.Request) {
	e, _, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if e.desc.Partition == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: e.desc.Schema + "." + e.desc.Name + " is not partitioned"})
		return
	}
	writeJSON(w, http.StatusOK, e.desc.Partition)
}

func (h *DescriptorHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	compress, err := snapshot.ParseCompressType(r.URL.Query().Get("compress"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	e, _, err := h.load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := snapshot.Encode(e.desc, compress)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Snapshot-Compress", compress.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DescriptorHandler) invalidate(w http.ResponseWriter, r *http.Request) {
	removed := h.cache.Invalidate(chi.URLParam(r, "schema"), chi.URLParam(r, "table"))
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// statusOf maps catalog and compiler failures onto HTTP status codes.
func statusOf(err error) int {
	if catalog.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch tableshare.KindOf(err) {
	case tableshare.KindUnknownStorageEngine, tableshare.KindUnknownCollation,
		tableshare.KindPluginNotLoaded, tableshare.KindInvalidMetadata:
		return http.StatusUnprocessableEntity
	case tableshare.KindOutOfMemory:
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if kind := tableshare.KindOf(err); kind != tableshare.KindUnknown {
		resp.Kind = kind.String()
	}
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
