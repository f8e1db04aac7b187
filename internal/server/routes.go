package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/gridctl/internal/object"
	"github.com/danmuck/gridctl/internal/remote"
)

// keyedObject is what a map-like handle must expose for key enumeration.
type keyedObject interface {
	Keys() ([]string, error)
	Put(key, value string) error
	Get(key string) (string, bool, error)
}

type objectInfo struct {
	Service  string `json:"service"`
	ObjectID string `json:"object_id"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"member": s.opts.Member.ID,
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")

	api.GET("/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"services": s.manager.Names()})
	})

	api.GET("/objects", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"objects": infos(s.proxy.AllObjects())})
	})

	api.GET("/services/:service/objects", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": c.Param("service"),
			"objects": infos(s.proxy.Objects(c.Param("service"))),
		})
	})

	// Key enumeration goes through the client-proxy path: this is the client
	// boundary, not a member-internal access.
	api.GET("/services/:service/objects/:id/keys", func(c *gin.Context) {
		obj, err := s.clientObject(c)
		if err != nil {
			respondError(c, err)
			return
		}
		keyed, ok := obj.(keyedObject)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "object does not enumerate keys"})
			return
		}
		keys, err := keyed.Keys()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"keys": keys})
	})

	api.GET("/services/:service/objects/:id/keys/:key", func(c *gin.Context) {
		obj, err := s.clientObject(c)
		if err != nil {
			respondError(c, err)
			return
		}
		keyed, ok := obj.(keyedObject)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "object does not store keys"})
			return
		}
		val, found, err := keyed.Get(c.Param("key"))
		if err != nil {
			respondError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": val})
	})

	api.PUT("/services/:service/objects/:id/keys/:key", func(c *gin.Context) {
		var body struct {
			Value string `json:"value"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		obj, err := s.clientObject(c)
		if err != nil {
			respondError(c, err)
			return
		}
		keyed, ok := obj.(keyedObject)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "object does not store keys"})
			return
		}
		if err := keyed.Put(c.Param("key"), body.Value); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.DELETE("/services/:service/objects/:id", func(c *gin.Context) {
		err := s.proxy.DestroyObject(c.Request.Context(), c.Param("service"), object.ID(c.Param("id")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "destroyed"})
	})
}

func (s *Server) clientObject(c *gin.Context) (object.DistributedObject, error) {
	return s.proxy.GetClientObject(c.Param("service"), object.ID(c.Param("id")))
}

func infos(objects []object.DistributedObject) []objectInfo {
	out := make([]objectInfo, 0, len(objects))
	for _, obj := range objects {
		out = append(out, objectInfo{Service: obj.ServiceName(), ObjectID: obj.ObjectID().String()})
	}
	return out
}

func respondError(c *gin.Context, err error) {
	var destroyed *object.DestroyedError
	var consensus *object.ConsensusError
	switch {
	case errors.Is(err, remote.ErrUnknownService), errors.Is(err, remote.ErrNoCapability):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &destroyed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.As(err, &consensus):
		leader, _ := consensus.KnownLeader()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "known_leader": leader})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
