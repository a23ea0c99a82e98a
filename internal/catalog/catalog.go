// Package catalog declares the brands, topics and stages of the content
// workflow and assembles them into a dispatch tree.
//
// Routing structure is code. Persona instructions and corpus ids are data:
// personas ship in personas.yaml and can be overridden through config.
package catalog

// Brand is a client brand. Declared values: Ebbinge, Intelic, HRC.
type Brand string

const (
	Ebbinge Brand = "Ebbinge"
	Intelic Brand = "Intelic"
	HRC     Brand = "HRC"
)

// Brands lists every declared brand.
func Brands() []Brand { return []Brand{Ebbinge, Intelic, HRC} }

// Topic is the kind of content requested.
type Topic string

const (
	TopicConcept       Topic = "concept_ontwikkeling"
	TopicMarketingPlan Topic = "marketingplan"
	TopicCopywriter    Topic = "copywriter"
	TopicOther         Topic = "overig"
)

// Topics returns the topic values declared for brand b.
func Topics(b Brand) []Topic {
	switch b {
	case Intelic:
		return []Topic{TopicConcept, TopicMarketingPlan, TopicCopywriter, TopicOther}
	case Ebbinge, HRC:
		return []Topic{TopicConcept, TopicMarketingPlan, TopicOther}
	}
	return nil
}

// Stage ids. They double as persona keys.
const (
	StageBrandClassifier = "brand_classifier"
	StageEbbingeTopic    = "ebbinge_topic"
	StageIntelicTopic    = "intelic_topic"
	StageHRCTopic        = "hrc_topic"

	StageEbbingeConceptAnalyzer = "ebbinge_concept_analyzer"
	StageEbbingeOnderzoeker     = "ebbinge_onderzoeker"
	StageEbbingeCreativeConcept = "ebbinge_creative_concept"
	StageEbbingeMarketingPlan   = "ebbinge_marketingplan"

	StageIntelicConcept       = "intelic_concept"
	StageIntelicMarketingPlan = "intelic_marketingplan"
	StageIntelicCopywriter    = "intelic_copywriter"

	StageHRCConcept           = "hrc_concept"
	StageHRCMarketingAnalyzer = "hrc_marketing_analyzer"
	StageHRCMarketingWriter   = "hrc_marketing_writer"
)

// Chain and gate ids.
const (
	ChainEbbingeConcept   = "ebbinge_concept_chain"
	ChainHRCMarketingPlan = "hrc_marketingplan_chain"
	GateEbbingeConcept    = "ebbinge_concept_approval"
)

// Corpus ids used for retrieval.
const (
	CorpusEbbingeConcepts  = "vs_6911c045ad7c8191b0577294e4474116"
	CorpusEbbingeBrand     = "vs_68fa03008aa08191b5526911a2fa0e8f"
	CorpusIntelic          = "vs_68fa3cae8c04819191bd26e78c66f096"
	CorpusHRCMarketingPlan = "vs_6900903a46c08191b5d49951da368677"
)

// Corpora lists every corpus the tree reads from.
func Corpora() []string {
	return []string{CorpusEbbingeConcepts, CorpusEbbingeBrand, CorpusIntelic, CorpusHRCMarketingPlan}
}

// ExecutiveSearchDomains is the web search allow-list for Ebbinge stages.
func ExecutiveSearchDomains() []string {
	return []string{
		"kornferry.com",
		"spencerstuart.com",
		"russellreynolds.com",
		"heidrick.com",
		"amrop.com",
		"debaak.nl",
		"berenschot.nl",
		"mckinsey.com",
		"hbr.org",
		"ey.com",
		"deloitte.com",
		"b2binstitute.org",
	}
}
