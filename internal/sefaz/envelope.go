package sefaz

import (
	"github.com/beevik/etree"

	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/model"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
)

// Web service message namespaces
const (
	statusWSDL       = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeConsultaProtocolo4"
	distributionWSDL = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe"

	statusVersion       = "4.00"
	distributionVersion = "1.01"
)

// Environment codes (tpAmb)
const (
	environmentProduction   = "1"
	environmentHomologation = "2"
)

func environment(homologation bool) string {
	if homologation {
		return environmentHomologation
	}
	return environmentProduction
}

// newEnvelope creates a SOAP 1.2 envelope and returns it with its body
func newEnvelope() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap12:Envelope")
	env.CreateAttr("xmlns:soap12", xmlparser.SOAP12Namespace)
	body := env.CreateElement("soap12:Body")
	return doc, body
}

// statusRequest builds the consSitNFe 4.00 envelope
func statusRequest(key model.AccessKey, homologation bool) ([]byte, error) {
	doc, body := newEnvelope()

	msg := body.CreateElement("nfeDadosMsg")
	msg.CreateAttr("xmlns", statusWSDL)

	cons := msg.CreateElement("consSitNFe")
	cons.CreateAttr("xmlns", xmlparser.NFeNamespace)
	cons.CreateAttr("versao", statusVersion)
	cons.CreateElement("tpAmb").SetText(environment(homologation))
	cons.CreateElement("xServ").SetText("CONSULTAR")
	cons.CreateElement("chNFe").SetText(string(key))

	return doc.WriteToBytes()
}

// distributionRequest builds the distDFeInt 1.01 envelope querying a single
// key on behalf of the certificate holder
func distributionRequest(key model.AccessKey, uf string, holder fiscal.Identity, homologation bool) ([]byte, error) {
	doc, body := newEnvelope()

	op := body.CreateElement("nfeDistDFeInteresse")
	op.CreateAttr("xmlns", distributionWSDL)
	msg := op.CreateElement("nfeDadosMsg")

	dist := msg.CreateElement("distDFeInt")
	dist.CreateAttr("xmlns", xmlparser.NFeNamespace)
	dist.CreateAttr("versao", distributionVersion)
	dist.CreateElement("tpAmb").SetText(environment(homologation))
	if code, ok := fiscal.IBGECode(uf); ok {
		dist.CreateElement("cUFAutor").SetText(code)
	}
	if holder.Kind == model.TaxIDCPF {
		dist.CreateElement("CPF").SetText(holder.Digits)
	} else {
		dist.CreateElement("CNPJ").SetText(holder.Digits)
	}
	dist.CreateElement("consChNFe").CreateElement("chNFe").SetText(string(key))

	return doc.WriteToBytes()
}
