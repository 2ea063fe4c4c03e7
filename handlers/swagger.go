package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves a Swagger UI page and an OpenAPI document built
// from the routes registered on r so far. Call it after Register.
//   - GET /swagger/index.html
//   - GET /swagger/doc.json
func RegisterSwagger(r *gin.Engine, title, version string) {
	doc := openAPI(r.Routes(), title, version)
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, strings.ReplaceAll(swaggerHTML, "{{title}}", title))
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})
}

// openAPI turns gin paths (/x/:id) into OpenAPI paths (/x/{id}).
func openAPI(routes gin.RoutesInfo, title, version string) gin.H {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	paths := gin.H{}
	for _, rt := range routes {
		if strings.HasPrefix(rt.Path, "/swagger/") {
			continue
		}
		var params []gin.H
		segs := strings.Split(rt.Path, "/")
		for i, s := range segs {
			if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
				name := s[1:]
				segs[i] = "{" + name + "}"
				params = append(params, gin.H{"name": name, "in": "path", "required": true, "schema": gin.H{"type": "string"}})
			}
		}
		p := strings.Join(segs, "/")
		item, _ := paths[p].(gin.H)
		if item == nil {
			item = gin.H{}
			paths[p] = item
		}
		op := gin.H{
			"summary":   rt.Method + " " + p,
			"responses": gin.H{"200": gin.H{"description": "ok"}, "default": gin.H{"description": "{\"error\": message}"}},
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		if strings.HasPrefix(rt.Path, "/api/") {
			op["security"] = []gin.H{{"bearerAuth": []string{}}}
		}
		item[strings.ToLower(rt.Method)] = op
	}
	return gin.H{
		"openapi": "3.0.0",
		"info":    gin.H{"title": title, "version": version},
		"paths":   paths,
		"components": gin.H{
			"securitySchemes": gin.H{"bearerAuth": gin.H{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}},
		},
	}
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>{{title}} - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`
