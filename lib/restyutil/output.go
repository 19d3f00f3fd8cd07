package restyutil

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
)

// FilesystemOutput writes each HTTP exchange to its own file under a
// directory, which is wiped on construction so a run starts clean.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) FilesystemOutput {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0o777)
	if err != nil {
		panic(err)
	}
	return FilesystemOutput{directory: dir}
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".http"), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write http exchange file", "id", id, "err", err)
	}
}

func renderHeaders(out *strings.Builder, headers http.Header) {
	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(out, "%s: %s\n", key, value)
		}
	}
}

func renderRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<failed to get request body: %s>", err)
	}
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<failed to read request body: %s>", err)
	}
	return string(contents)
}

func renderExchange(res *resty.Response) string {
	var out strings.Builder

	fmt.Fprintf(&out, ">>> %s %s\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		renderHeaders(&out, res.Request.RawRequest.Header)
		out.WriteString("\n")
		out.WriteString(renderRequestBody(res.Request.RawRequest))
		out.WriteString("\n")
	}

	fmt.Fprintf(&out, "<<< %s\n", res.Status())
	renderHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(res.String())

	return out.String()
}
