package sefaz

import "strings"

// Distribution is served nationally by the Ambiente Nacional
const (
	DistributionURLProduction   = "https://www1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"
	DistributionURLHomologation = "https://hom1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"
)

// States without their own authorizer use SVRS
const (
	svrsStatusProduction   = "https://nfe.svrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx"
	svrsStatusHomologation = "https://nfe-homologacao.svrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx"
)

// statusURLs lists production NfeConsultaProtocolo endpoints of the states
// running their own authorizer
var statusURLs = map[string]string{
	"AM": "https://nfe.sefaz.am.gov.br/services2/services/NfeConsulta4",
	"BA": "https://nfe.sefaz.ba.gov.br/webservices/NFeConsultaProtocolo4/NFeConsultaProtocolo4.asmx",
	"GO": "https://nfe.sefaz.go.gov.br/nfe/services/NFeConsultaProtocolo4",
	"MG": "https://nfe.fazenda.mg.gov.br/nfe2/services/NFeConsultaProtocolo4",
	"MS": "https://nfe.sefaz.ms.gov.br/ws/NFeConsultaProtocolo4",
	"MT": "https://nfe.sefaz.mt.gov.br/nfews/v2/services/NfeConsulta4",
	"PE": "https://nfe.sefaz.pe.gov.br/nfe-service/services/NFeConsultaProtocolo4",
	"PR": "https://nfe.sefa.pr.gov.br/nfe/NFeConsultaProtocolo4",
	"RS": "https://nfe.sefazrs.rs.gov.br/ws/NfeConsulta/NfeConsulta4.asmx",
	"SP": "https://nfe.fazenda.sp.gov.br/ws/nfeconsultaprotocolo4.asmx",
}

// StatusURL returns the status query endpoint for uf
func StatusURL(uf string, homologation bool) string {
	if homologation {
		return svrsStatusHomologation
	}
	if url, ok := statusURLs[strings.ToUpper(uf)]; ok {
		return url
	}
	return svrsStatusProduction
}

// DistributionURL returns the national distribution endpoint
func DistributionURL(homologation bool) string {
	if homologation {
		return DistributionURLHomologation
	}
	return DistributionURLProduction
}
