package catalog

import (
	"fmt"

	"github.com/fyrsmithlabs/brandflow/internal/stage"
	"github.com/fyrsmithlabs/brandflow/internal/workflow"
)

// stageDef is the static part of a generation stage.
type stageDef struct {
	id            string
	structured    bool
	augmentations []stage.Augmentation
}

func retrieval(corpus string) stage.Augmentation {
	return stage.Retrieval{CorpusID: corpus}
}

func webSearch(country string) stage.Augmentation {
	return stage.WebSearch{AllowedDomains: ExecutiveSearchDomains(), Country: country}
}

var generationStages = []stageDef{
	{id: StageEbbingeConceptAnalyzer, augmentations: []stage.Augmentation{retrieval(CorpusEbbingeConcepts)}},
	{id: StageEbbingeOnderzoeker, augmentations: []stage.Augmentation{retrieval(CorpusEbbingeBrand), webSearch("NL")}},
	{id: StageEbbingeCreativeConcept, augmentations: []stage.Augmentation{retrieval(CorpusEbbingeConcepts)}},
	{id: StageEbbingeMarketingPlan, augmentations: []stage.Augmentation{retrieval(CorpusEbbingeBrand), webSearch("")}},
	{id: StageIntelicConcept, augmentations: []stage.Augmentation{retrieval(CorpusIntelic)}},
	{id: StageIntelicMarketingPlan, augmentations: []stage.Augmentation{retrieval(CorpusIntelic)}},
	{id: StageIntelicCopywriter, augmentations: []stage.Augmentation{retrieval(CorpusIntelic)}},
	{id: StageHRCConcept, augmentations: []stage.Augmentation{retrieval(CorpusIntelic)}},
	{id: StageHRCMarketingAnalyzer, augmentations: []stage.Augmentation{retrieval(CorpusHRCMarketingPlan)}},
	{id: StageHRCMarketingWriter, structured: true},
}

// WebSearchStages lists the generation stages that declare web search.
func WebSearchStages() []string {
	var ids []string
	for _, def := range generationStages {
		for _, a := range def.augmentations {
			if _, ok := a.(stage.WebSearch); ok {
				ids = append(ids, def.id)
				break
			}
		}
	}
	return ids
}

// Build assembles the dispatch tree:
//
//	brand_classifier
//	├─ Ebbinge → ebbinge_topic
//	│   ├─ concept_ontwikkeling → chain(concept_analyzer, onderzoeker, creative_concept) → approval
//	│   └─ marketingplan        → marketingplan
//	├─ Intelic → intelic_topic
//	│   ├─ concept_ontwikkeling → concept
//	│   ├─ marketingplan        → marketingplan
//	│   └─ copywriter           → copywriter
//	└─ HRC → hrc_topic
//	    ├─ concept_ontwikkeling → concept
//	    └─ marketingplan        → chain(marketing_analyzer, marketing_writer)
//
// Every other value ends unmatched.
func Build(gen stage.Generator, personas Personas) (workflow.Step, error) {
	b := builder{gen: gen, personas: personas, stages: map[string]*stage.GenerationStage{}}
	for _, def := range generationStages {
		if err := b.generation(def); err != nil {
			return nil, err
		}
	}

	conceptChain, err := workflow.NewChain(ChainEbbingeConcept,
		b.stages[StageEbbingeConceptAnalyzer],
		b.stages[StageEbbingeOnderzoeker],
		b.stages[StageEbbingeCreativeConcept],
	)
	if err != nil {
		return nil, err
	}
	conceptChain.Next = workflow.NewApprovalGate(GateEbbingeConcept, workflow.AlwaysApprove, workflow.Done, workflow.Done)

	hrcPlanChain, err := workflow.NewChain(ChainHRCMarketingPlan,
		b.stages[StageHRCMarketingAnalyzer],
		b.stages[StageHRCMarketingWriter],
	)
	if err != nil {
		return nil, err
	}

	ebbinge, err := b.topicBranch(StageEbbingeTopic, Ebbinge, map[Topic]workflow.Step{
		TopicConcept:       conceptChain,
		TopicMarketingPlan: workflow.NewSingle(b.stages[StageEbbingeMarketingPlan]),
	})
	if err != nil {
		return nil, err
	}
	intelic, err := b.topicBranch(StageIntelicTopic, Intelic, map[Topic]workflow.Step{
		TopicConcept:       workflow.NewSingle(b.stages[StageIntelicConcept]),
		TopicMarketingPlan: workflow.NewSingle(b.stages[StageIntelicMarketingPlan]),
		TopicCopywriter:    workflow.NewSingle(b.stages[StageIntelicCopywriter]),
	})
	if err != nil {
		return nil, err
	}
	hrc, err := b.topicBranch(StageHRCTopic, HRC, map[Topic]workflow.Step{
		TopicConcept:       workflow.NewSingle(b.stages[StageHRCConcept]),
		TopicMarketingPlan: hrcPlanChain,
	})
	if err != nil {
		return nil, err
	}

	persona, err := personas.Get(StageBrandClassifier)
	if err != nil {
		return nil, err
	}
	brandClassifier, err := stage.NewClassifier(gen, stage.ClassifierConfig[Brand]{
		ID:           StageBrandClassifier,
		Name:         persona.Name,
		Instructions: persona.Instructions,
		Values:       Brands(),
		Effort:       stage.EffortLow,
	})
	if err != nil {
		return nil, err
	}
	root, err := workflow.NewBranch(workflow.StateClassifyBrand, brandClassifier, map[Brand]workflow.Step{
		Ebbinge: ebbinge,
		Intelic: intelic,
		HRC:     hrc,
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

type builder struct {
	gen      stage.Generator
	personas Personas
	stages   map[string]*stage.GenerationStage
}

func (b *builder) generation(def stageDef) error {
	persona, err := b.personas.Get(def.id)
	if err != nil {
		return err
	}
	cfg := stage.GenerationConfig{
		ID:            def.id,
		Name:          persona.Name,
		Instructions:  persona.Instructions,
		Effort:        stage.EffortHigh,
		Augmentations: def.augmentations,
	}
	if def.structured {
		cfg.Schema = stage.ObjectSchema(def.id)
	}
	s, err := stage.NewGenerationStage(b.gen, cfg)
	if err != nil {
		return fmt.Errorf("build %s: %w", def.id, err)
	}
	b.stages[def.id] = s
	return nil
}

func (b *builder) topicBranch(id string, brand Brand, routes map[Topic]workflow.Step) (*workflow.Branch[Topic], error) {
	persona, err := b.personas.Get(id)
	if err != nil {
		return nil, err
	}
	c, err := stage.NewClassifier(b.gen, stage.ClassifierConfig[Topic]{
		ID:           id,
		Name:         persona.Name,
		Instructions: persona.Instructions,
		Values:       Topics(brand),
		Effort:       stage.EffortLow,
	})
	if err != nil {
		return nil, err
	}
	return workflow.NewBranch(workflow.StateClassifyTopic, c, routes)
}
