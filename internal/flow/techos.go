package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcosum/arcobot/internal/models"
)

// VendorPhoneTechos receives roofing requests.
const VendorPhoneTechos = "+52 222 423 4611"

// firstName returns the first word of the stored full name.
func firstName(s *FormSession) string {
	name := s.Value("nombre")
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// TechosForm is the Arcotechos and metal structures funnel.
func TechosForm() *FormDefinition {
	return &FormDefinition{
		Division:    models.DivisionTechos,
		LeadType:    models.LeadTypeTechosForm,
		LeadScore:   8,
		VendorPhone: VendorPhoneTechos,
		Intro:       "🏗️ *FORMULARIO TECHOS* 📋\n\nTe ayudaré a procesar tu solicitud de Arcotechos y estructuras metálicas.",
		Fields: []FieldSpec{
			{
				Name: "nombre",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 1 de 4:* ¿Cuál es tu nombre completo?\n\n(Formato: Nombre Apellido)"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.FullName(input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor ingresa nombre y apellido válidos\n\nFormato: Juan Pérez"
				},
			},
			{
				Name: "descripcion",
				Prompt: func(s *FormSession) string {
					return fmt.Sprintf("✅ Gracias, %s!\n\n📝 *Paso 2 de 4:* Describe tu proyecto (Arcotecho, estructura, etc.)\n\nEjemplo: \"Necesito un arcotecho para mi nave industrial de 50x30 metros\"", firstName(s))
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.MinLength(input, 10)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor describe tu proyecto con más detalle (mínimo 10 caracteres)"
				},
			},
			{
				Name: "ubicacion",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 3 de 4:* ¿En qué estado y municipio se ubicará la obra?\n\nEjemplo: Puebla, Puebla o Tlaxcala, Tenancingo"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.MinLength(input, 5)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor indica el estado y municipio de la obra\n\nEjemplo: Puebla, Puebla"
				},
			},
		},
		Confirm: func(s *FormSession) string {
			return fmt.Sprintf("✅ *RESUMEN DE TU SOLICITUD*\n\n👤 *Nombre:* %s\n📋 *Proyecto:* %s\n📍 *Ubicación:* %s\n\n¿Es correcto? Responde:\n✅ Sí, enviar\n❌ No, cancelar",
				s.Value("nombre"), s.Value("descripcion"), s.Value("ubicacion"))
		},
		Completion: func(s *FormSession) string {
			return fmt.Sprintf("✅ *¡Solicitud Enviada Correctamente!*\n\nTu solicitud de ARCOSUM TECHOS ha sido registrada exitosamente y enviada al **Vendedor de ARCOSUM**.\n\n🏗️ *Detalles registrados:*\n• Nombre: %s\n• Proyecto: %s\n• Ubicación: %s\n\n📞 *El Vendedor de ARCOSUM se pondrá en contacto contigo en las próximas 2 horas.*\n\nSi es urgente: %s\n\n*¡Gracias por confiar en ARCOSUM!* 🏭",
				s.Value("nombre"), s.Value("descripcion"), s.Value("ubicacion"), VendorPhoneTechos)
		},
		VendorNotice: func(s *FormSession) string {
			return fmt.Sprintf("🚨 *NUEVA SOLICITUD TECHOS*\n\n📱 *Cliente:* %s\n👤 *Nombre:* %s\n\n📋 *Proyecto:* %s\n📍 *Ubicación:* %s\n\n⏰ *Contactar en los próximos 30 minutos*",
				s.Phone, s.Value("nombre"), s.Value("descripcion"), s.Value("ubicacion"))
		},
		Summary: func(s *FormSession) string {
			return fmt.Sprintf("Solicitud de techos: %s en %s", s.Value("descripcion"), s.Value("ubicacion"))
		},
	}
}
