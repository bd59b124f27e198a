package pipeline

import (
	"html"
	"strings"

	"github.com/jonathan/content-pipeline/internal/images"
	"github.com/jonathan/content-pipeline/internal/publish"
)

// renderHTML turns the reviewed markdown-style text into an HTML deliverable,
// with generated images placed after the lead section and a further-watching
// list appended. The conversion covers what the draft directive produces:
// headings, paragraphs, and simple lists.
func renderHTML(title, text string, imgs []images.Image, videos []VideoRecommendation) string {
	var sb strings.Builder
	sb.WriteString("<article>\n")
	sb.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n")

	imagesPlaced := false
	inList := false
	closeList := func() {
		if inList {
			sb.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, block := range strings.Split(text, "\n") {
		line := strings.TrimSpace(block)
		switch {
		case line == "":
			closeList()
		case strings.HasPrefix(line, "### "):
			closeList()
			sb.WriteString("<h3>" + html.EscapeString(strings.TrimPrefix(line, "### ")) + "</h3>\n")
		case strings.HasPrefix(line, "## "):
			closeList()
			if !imagesPlaced {
				writeFigures(&sb, imgs)
				imagesPlaced = true
			}
			sb.WriteString("<h2>" + html.EscapeString(strings.TrimPrefix(line, "## ")) + "</h2>\n")
		case strings.HasPrefix(line, "# "):
			closeList()
			sb.WriteString("<h2>" + html.EscapeString(strings.TrimPrefix(line, "# ")) + "</h2>\n")
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			if !inList {
				sb.WriteString("<ul>\n")
				inList = true
			}
			sb.WriteString("<li>" + html.EscapeString(line[2:]) + "</li>\n")
		default:
			closeList()
			sb.WriteString("<p>" + html.EscapeString(line) + "</p>\n")
		}
	}
	closeList()

	// A draft with no section headings never triggered placement.
	if !imagesPlaced {
		writeFigures(&sb, imgs)
	}

	if len(videos) > 0 {
		sb.WriteString("<h2>Further watching</h2>\n<ul>\n")
		for _, v := range videos {
			sb.WriteString(`<li><a href="` + html.EscapeString(v.URL) + `">` +
				html.EscapeString(v.Title) + "</a></li>\n")
		}
		sb.WriteString("</ul>\n")
	}

	sb.WriteString("</article>\n")
	return sb.String()
}

func writeFigures(sb *strings.Builder, imgs []images.Image) {
	for _, img := range imgs {
		sb.WriteString(`<figure><img src="` + html.EscapeString(img.URL) +
			`" alt="` + html.EscapeString(img.Prompt) + `"></figure>` + "\n")
	}
}

// renderPlainText strips the markdown markers and appends the video list.
func renderPlainText(text string, videos []VideoRecommendation) string {
	var sb strings.Builder
	for _, block := range strings.Split(text, "\n") {
		line := strings.TrimSpace(block)
		line = strings.TrimLeft(line, "#")
		line = strings.TrimSpace(line)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if len(videos) > 0 {
		sb.WriteString("\nFurther watching:\n")
		for _, v := range videos {
			sb.WriteString(v.Title + " - " + v.URL + "\n")
		}
	}
	return strings.TrimSpace(sb.String()) + "\n"
}

func publishPost(title, htmlContent string, imageURLs []string) publish.Post {
	return publish.Post{
		Title:   title,
		Content: htmlContent,
		Images:  imageURLs,
	}
}
