package authority_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/model"
)

const statusFragment = `<cStat>100</cStat><xMotivo>Autorizado</xMotivo>`

func TestInterpret_AnyEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare", statusFragment},
		{"no namespace", `<retConsSitNFe versao="4.00">` + statusFragment + `</retConsSitNFe>`},
		{"fiscal namespace", `<retConsSitNFe xmlns="http://www.portalfiscal.inf.br/nfe">` + statusFragment + `</retConsSitNFe>`},
		{
			"soap 1.1",
			`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
				`<nfeResultMsg><retConsSitNFe xmlns="http://www.portalfiscal.inf.br/nfe">` + statusFragment +
				`</retConsSitNFe></nfeResultMsg></soap:Body></soap:Envelope>`,
		},
		{
			"soap 1.2",
			`<?xml version="1.0" encoding="utf-8"?><env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body>` +
				`<nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeConsultaProtocolo4"><retConsSitNFe xmlns="http://www.portalfiscal.inf.br/nfe">` +
				statusFragment + `</retConsSitNFe></nfeResultMsg></env:Body></env:Envelope>`,
		},
		{
			"prefixed fiscal elements",
			`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><n:ret xmlns:n="http://www.portalfiscal.inf.br/nfe">` +
				`<n:cStat>100</n:cStat><n:xMotivo>Autorizado</n:xMotivo></n:ret></s:Body></s:Envelope>`,
		},
		{"unknown namespace", `<r xmlns="urn:other">` + statusFragment + `</r>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := authority.Interpret([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, "100", status.Code)
			assert.Equal(t, "Autorizado", status.Reason)
			assert.Equal(t, model.OutcomeAuthorized, status.Outcome())
		})
	}
}

func TestInterpret_OuterStatusWins(t *testing.T) {
	body := `<retConsSitNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>101</cStat><xMotivo>Cancelamento homologado</xMotivo>` +
		`<protNFe><infProt><cStat>100</cStat><xMotivo>Autorizado</xMotivo></infProt></protNFe></retConsSitNFe>`

	status, err := authority.Interpret([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "101", status.Code)
	assert.Equal(t, "Cancelamento homologado", status.Reason)
	assert.Equal(t, model.OutcomeRejected, status.Outcome())
}

func TestInterpret_CaseInsensitiveScan(t *testing.T) {
	status, err := authority.Interpret([]byte(`<Ret><CSTAT>217</CSTAT><XMOTIVO>NF-e nao consta na base</XMOTIVO></Ret>`))
	require.NoError(t, err)
	assert.Equal(t, "217", status.Code)
	assert.Equal(t, "NF-e nao consta na base", status.Reason)
}

func TestInterpret_SkipsNonNumericCode(t *testing.T) {
	status, err := authority.Interpret([]byte(`<r><a><cStat>n/a</cStat></a><b><cStat>656</cStat></b></r>`))
	require.NoError(t, err)
	assert.Equal(t, "656", status.Code)
}

func TestInterpret_RawTextFallback(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   string
		reason string
	}{
		{
			"truncated markup",
			`<soap:Envelope><soap:Body><ret><cStat>138</cStat><xMotivo>Documento localizado</xMotivo><docZip>H4sI`,
			"138", "Documento localizado",
		},
		{
			"escaped inside a string element",
			`<r><return>&lt;retConsSitNFe&gt;&lt;cStat&gt;100&lt;/cStat&gt;&lt;xMotivo&gt;Autorizado o uso&lt;/xMotivo&gt;&lt;/retConsSitNFe&gt;</return></r>`,
			"100", "Autorizado o uso",
		},
		{
			"attributes and whitespace",
			"garbage <ns2:cStat  versao=\"1\">\n 656 \n</ns2:cStat> <XMOTIVO>Rejeicao: Consumo Indevido</XMOTIVO>",
			"656", "Rejeicao: Consumo Indevido",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := authority.Interpret([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.code, status.Code)
			assert.Equal(t, tt.reason, status.Reason)
		})
	}
}

func TestInterpret_DefaultReason(t *testing.T) {
	status, err := authority.Interpret([]byte(`<ret><cStat>137</cStat><xMotivo>  </xMotivo></ret>`))
	require.NoError(t, err)
	assert.Equal(t, "137", status.Code)
	assert.Equal(t, model.DefaultReason, status.Reason)
}

func TestInterpret_StatusNotFound(t *testing.T) {
	bodies := []string{
		"",
		"Service Unavailable",
		`<ret><xMotivo>Sem status</xMotivo></ret>`,
		`<html><body>502 Bad Gateway</body></html>`,
	}

	for i, body := range bodies {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			status, err := authority.Interpret([]byte(body))
			require.Error(t, err)

			var notFound *model.StatusNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, model.OutcomeUnparseable, status.Outcome())
		})
	}
}
