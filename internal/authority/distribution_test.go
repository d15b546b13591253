package authority_test

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/model"
	"github.com/rezonia/sefaz-bridge/internal/payload"
)

const (
	testKey = "31240112345678000199550010000012341123456789"

	procNFe = `<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><NFe><infNFe Id="NFe` + testKey + `" versao="4.00">` +
		`<dest><CNPJ>98765432000110</CNPJ><xNome>DESTINATARIO COMERCIO LTDA</xNome>` +
		`<enderDest><xLgr>Av. Afonso Pena</xLgr><nro>1500</nro><xMun>Belo Horizonte</xMun><UF>MG</UF></enderDest></dest>` +
		`<total><ICMSTot><vNF>1500.00</vNF></ICMSTot></total></infNFe></NFe></nfeProc>`

	resNFe = `<resNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01"><chNFe>` + testKey + `</chNFe><vNF>1500.00</vNF></resNFe>`
)

type docZip struct {
	nsu    string
	schema string
	body   string
}

func encode(t *testing.T, xml string) string {
	t.Helper()
	encoded, err := payload.NewDecoder().Encode(xml)
	require.NoError(t, err)
	return encoded
}

// distributionResponse builds a SOAP 1.2 distDFeInt response
func distributionResponse(code, reason string, docs ...docZip) string {
	var lote strings.Builder
	if len(docs) > 0 {
		lote.WriteString("<loteDistDFeInt>")
		for _, d := range docs {
			fmt.Fprintf(&lote, `<docZip NSU="%s" schema="%s">%s</docZip>`, d.nsu, d.schema, d.body)
		}
		lote.WriteString("</loteDistDFeInt>")
	}

	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<nfeDistDFeInteresseResponse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe"><nfeDistDFeInteresseResult>` +
		`<retDistDFeInt xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01"><tpAmb>1</tpAmb>` +
		`<cStat>` + code + `</cStat><xMotivo>` + reason + `</xMotivo><ultNSU>000000000000010</ultNSU>` +
		lote.String() +
		`</retDistDFeInt></nfeDistDFeInteresseResult></nfeDistDFeInteresseResponse></soap:Body></soap:Envelope>`
}

func TestParseDistribution(t *testing.T) {
	body := distributionResponse("138", "Documento localizado",
		docZip{"000000000000009", "resNFe_v1.01.xsd", encode(t, resNFe)},
		docZip{"000000000000010", "procNFe_v4.00.xsd", encode(t, procNFe)},
	)

	dist, err := authority.ParseDistribution([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, model.AuthorityStatus{Code: "138", Reason: "Documento localizado"}, dist.Status)
	assert.True(t, dist.Located())
	assert.Equal(t, model.OutcomeLocated, dist.Outcome())
	assert.False(t, dist.ImproperUse())
	require.Len(t, dist.Documents, 2)

	summary := dist.Documents[0]
	assert.Equal(t, "000000000000009", summary.NSU)
	assert.False(t, summary.Full())
	assert.NoError(t, summary.Err)
	assert.Equal(t, model.EncodingGzipBase64, summary.Payload.Encoding)
	assert.Equal(t, payload.Declaration+resNFe, summary.Payload.XML)

	full := dist.Documents[1]
	assert.True(t, full.Full())
	assert.Equal(t, payload.Declaration+procNFe, full.Payload.XML)
}

func TestParseDistribution_NoDocuments(t *testing.T) {
	for _, code := range []string{"137", "656"} {
		t.Run(code, func(t *testing.T) {
			dist, err := authority.ParseDistribution([]byte(distributionResponse(code, "Nenhum documento")))
			require.NoError(t, err)
			assert.False(t, dist.Located())
			assert.Empty(t, dist.Documents)
			assert.Equal(t, code == model.StatusImproperUse, dist.ImproperUse())
		})
	}
}

func TestParseDistribution_BadPayloadIsIsolated(t *testing.T) {
	body := distributionResponse("138", "Documento localizado",
		docZip{"1", "resNFe_v1.01.xsd", "%%% not base64 %%%"},
		docZip{"2", "procNFe_v4.00.xsd", base64.StdEncoding.EncodeToString([]byte(procNFe))},
	)

	dist, err := authority.ParseDistribution([]byte(body))
	require.NoError(t, err)
	require.Len(t, dist.Documents, 2)

	var decodeErr *model.PayloadDecodeError
	assert.ErrorAs(t, dist.Documents[0].Err, &decodeErr)

	assert.NoError(t, dist.Documents[1].Err)
	assert.Equal(t, model.EncodingPlainBase64, dist.Documents[1].Payload.Encoding)
}

func TestParseDistribution_StatusNotFound(t *testing.T) {
	_, err := authority.ParseDistribution([]byte(`<retDistDFeInt><ultNSU>0</ultNSU></retDistDFeInt>`))
	var notFound *model.StatusNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestParseDistribution_TerminalStatusSkipsDocuments(t *testing.T) {
	for _, code := range []string{"217", "656", "137"} {
		t.Run(code, func(t *testing.T) {
			body := distributionResponse(code, "Rejeicao", docZip{"7", "procNFe_v4.00.xsd", encode(t, procNFe)})

			dist, err := authority.ParseDistribution([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, code, dist.Status.Code)
			assert.Equal(t, model.OutcomeRejected, dist.Outcome())
			assert.False(t, dist.Located())
			assert.Empty(t, dist.Documents)
		})
	}
}
