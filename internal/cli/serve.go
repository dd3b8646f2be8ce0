package cli

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/source"
	"github.com/sbenjam1n/annotate/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved annotations over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataFile, _ := cmd.Flags().GetString("data")
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Listen
		}
		ctx := context.Background()

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()
		st, err := openStore(ctx, backend)
		if err != nil {
			return err
		}

		var src *source.Source
		if dataFile != "" || cfg.DataFile != "" {
			if src, err = loadSource(dataFile); err != nil {
				return err
			}
		}

		router := newRouter(cfg.Name, st, src)
		return router.Run(listen)
	},
}

// annotationServer answers from a store snapshot taken at startup.
type annotationServer struct {
	name  string
	st    *store.Store
	table *store.Table
	src   *source.Source
}

func newRouter(name string, st *store.Store, src *source.Source) *gin.Engine {
	s := &annotationServer{name: name, st: st, table: st.Export(), src: src}

	router := gin.Default()
	api := router.Group("/")
	{
		api.GET("/tasks", s.handleTasks)
		api.GET("/annotations", s.handleAnnotations)
		api.GET("/annotations/:id", s.handleAnnotation)
		api.GET("/status", s.handleStatus)
	}
	return router
}

func (s *annotationServer) handleTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    s.table.Columns,
	})
}

func (s *annotationServer) handleAnnotations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    s.table,
	})
}

func (s *annotationServer) handleAnnotation(c *gin.Context) {
	id := c.Param("id")

	row, ok := s.st.Read(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "record not annotated",
		})
		return
	}

	values := make(map[string]any, len(row.Values))
	for name, v := range row.Values {
		values[name] = v.Interface()
	}
	data := gin.H{
		"id":        row.ID,
		"values":    values,
		"timestamp": row.Timestamp,
		"user":      row.User,
	}
	if s.src != nil {
		if fields, ok := s.src.Content(id); ok {
			data["content"] = fields
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *annotationServer) handleStatus(c *gin.Context) {
	data := gin.H{
		"name":      s.name,
		"tasks":     s.st.Tasks().Len(),
		"annotated": s.st.Len(),
	}
	if s.src != nil {
		data["records"] = s.src.Len()
		data["unannotated"] = len(s.st.Unannotated(s.src.IDs()))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func init() {
	serveCmd.Flags().String("data", "", "Data file for record content and status")
	serveCmd.Flags().String("listen", "", "Listen address (default from config)")
}
