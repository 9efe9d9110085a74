// Command contentd is a thin read-only HTTP demo server over the engine:
// object fetch, link testing, and search, each as a small gin handler.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledgecore/config"
	"knowledgecore/engine"
	"knowledgecore/errs"
	"knowledgecore/query"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the engine configuration YAML file")
		listenAddr = flag.String("listen-addr", ":8080", "Address to listen on")
	)
	flag.Parse()

	if *configPath == "" {
		log.Fatal("contentd: -config is required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("contentd: %v", err)
	}

	e := engine.New(cfg)

	router := gin.Default()
	router.GET("/content/:id", objectHandler(e))
	router.GET("/link", linkHandler(e))
	router.GET("/search", searchHandler(e))

	log.Printf("contentd: listening on %s for app %q", *listenAddr, cfg.DefaultAppID)
	if err := router.Run(*listenAddr); err != nil {
		log.Fatalf("contentd: server exited: %v", err)
	}
}

func objectHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		uri := c.Param("id")
		entity, err := e.GetObject(c.Request.Context(), uri)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entity)
	}
}

func linkHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		link := c.Query("url")
		if link == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'url' is required"})
			return
		}
		uri, err := e.TestLink(c.Request.Context(), link)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		if uri == "" {
			c.JSON(http.StatusNotFound, gin.H{"uri": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uri": uri})
	}
}

func searchHandler(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		terms := c.Query("q")
		if terms == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}

		q := query.New(terms)
		if tag := c.Query("tag"); tag != "" {
			q = query.NewFrom(q, query.WithTagsMatchAny([]string{tag}))
		}

		results, err := e.Query(c.Request.Context(), q)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"query":       terms,
			"results":     results.Entities,
			"upper_bound": results.UpperBound,
		})
	}
}

func statusFor(err error) int {
	switch {
	case errs.Is(err, errs.IdNotValid):
		return http.StatusBadRequest
	case errs.Is(err, errs.IdNotFound), errs.Is(err, errs.DatabaseEmpty):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
