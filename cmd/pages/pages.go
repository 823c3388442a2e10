// Command pages serves the document templates filled with a sample record,
// for working on the templates without going through the form.
//
//	go run ./cmd/pages -record testdata.json
//
// GET /page/{kind} shows the printable page and GET /pdf/{kind} prints it
// with the local Chrome.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/evidenceledger/docgen/internal/compose"
	"github.com/evidenceledger/docgen/internal/pdf"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/submit"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// sample is used when no record file is given.
var sample = map[string]string{
	"nomeProprietario":        "JOAO SILVA",
	"cpfProprietario":         "52998224725",
	"rgProprietario":          "123456789",
	"enderecoProprietario":    "RUA DAS FLORES, 100",
	"complementoProprietario": "CENTRO",
	"municipioProprietario":   "SAO PAULO",
	"estadoProprietario":      "SP",
	"cepProprietario":         "01001000",
	"nome":                    "MARIA SOUZA",
	"cpf":                     "11144477735",
	"profissao":               "DESPACHANTE",
	"municipio":               "SAO PAULO",
	"estado":                  "SP",
	"placa":                   "ABC1D23",
	"renavam":                 "12345678901",
	"chassi":                  "9BWZZZ377VT004251",
	"marcaModelo":             "VW/GOL 1.0",
	"localAssinatura":         "São Paulo",
	"autoInfracao":            "A123456789",
	"orgaoAutuador":           "DETRAN-SP",
}

func main() {

	var (
		port       string
		recordFile string
		chromeBin  string
	)
	flag.StringVar(&port, "port", "8080", "Port to listen on")
	flag.StringVar(&recordFile, "record", "", "JSON file with the record fields")
	flag.StringVar(&chromeBin, "chrome-bin", "", "Chrome binary used to print PDFs")
	flag.Parse()

	fields := sample
	if recordFile != "" {
		data, err := os.ReadFile(recordFile)
		if err != nil {
			slog.Error("Failed to read record", "error", err)
			os.Exit(1)
		}
		fields = map[string]string{}
		if err := json.Unmarshal(data, &fields); err != nil {
			slog.Error("Failed to parse record", "file", recordFile, "error", err)
			os.Exit(1)
		}
	}

	composer, err := compose.New()
	if err != nil {
		slog.Error("Failed to load document templates", "error", err)
		os.Exit(1)
	}
	chrome := pdf.NewChrome(chromeBin, "")
	defer chrome.Close()

	app := fiber.New(fiber.Config{
		AppName:                 "Go template development",
		ServerHeader:            "DocGen",
		EnableTrustedProxyCheck: false,
		ReadTimeout:             30 * time.Second,
		WriteTimeout:            60 * time.Second,
	})

	// Recovers from panics anywhere in the stack chain and handles the control to the centralized ErrorHandler
	app.Use(recover.New())

	page := func(c *fiber.Ctx) (string, error) {
		rec := record.FromMap(fields)
		rec.Set(record.Doc(record.AttrDocumentKind), c.Params("kind"))
		return composer.Page(rec, submit.Title(rec))
	}

	app.Get("/page/:kind", func(c *fiber.Ctx) error {
		out, err := page(c)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(out)
	})

	app.Get("/pdf/:kind", func(c *fiber.Ctx) error {
		out, err := page(c)
		if err != nil {
			return err
		}
		data, err := chrome.Render(c.UserContext(), out)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		return c.Send(data)
	})

	if err := app.Listen(":" + port); err != nil {
		fmt.Println(err)
	}

}
